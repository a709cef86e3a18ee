package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/insurance-upsell/internal/core/domain"
	"github.com/kirillkom/insurance-upsell/internal/core/ports"
)

const maxPDFBytes = 64 << 20

// Extractor pulls the plain text layer out of a PDF policy file.
// Scanned PDFs without a text layer yield an empty string.
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

	raw, err := io.ReadAll(io.LimitReader(reader, maxPDFBytes+1))
	if err != nil {
		return "", fmt.Errorf("read policy file: %w", err)
	}
	if len(raw) > maxPDFBytes {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract pdf", fmt.Errorf("%s exceeds %d bytes", doc.FileName, maxPDFBytes))
	}

	text, err := plainText(raw)
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract pdf", fmt.Errorf("%s: %w", doc.FileName, err))
	}
	return strings.TrimSpace(text), nil
}

// plainText converts a PDF to text. The parser panics on some malformed
// inputs, so panics are turned into errors.
func plainText(raw []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	content, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(content); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}
