package plaintext

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/insurance-upsell/internal/core/domain"
	"github.com/kirillkom/insurance-upsell/internal/core/ports"
)

// Extractor reads text/plain and text/markdown policy files as-is.
type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.PolicyDocument) (string, error) {
	reader, err := e.storage.Open(ctx, doc.StorageKey)
	if err != nil {
		return "", fmt.Errorf("open policy file: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read policy file: %w", err)
	}

	if !utf8.Valid(raw) {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", fmt.Errorf("%s is not valid UTF-8 text", doc.FileName))
	}
	return strings.TrimSpace(strings.TrimPrefix(string(raw), "\ufeff")), nil
}
