package extractor

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/kirillkom/insurance-upsell/internal/core/domain"
	"github.com/kirillkom/insurance-upsell/internal/core/ports"
)

// Router dispatches extraction by the document's MIME type, falling back
// to the file extension when the stored type is generic.
type Router struct {
	byType map[string]ports.TextExtractor
}

func NewRouter() *Router {
	return &Router{byType: make(map[string]ports.TextExtractor)}
}

func (r *Router) Register(extractor ports.TextExtractor, mimeTypes ...string) *Router {
	for _, mt := range mimeTypes {
		r.byType[strings.ToLower(mt)] = extractor
	}
	return r
}

func (r *Router) Extract(ctx context.Context, doc *domain.PolicyDocument) (string, error) {
	mt := baseMimeType(doc.MimeType)
	if mt == "" || mt == "application/octet-stream" {
		mt = typeByExtension(doc.FileName)
	}

	extractor, ok := r.byType[mt]
	if !ok {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", fmt.Errorf("unsupported mime type %q", doc.MimeType))
	}
	return extractor.Extract(ctx, doc)
}

var knownExtensions = map[string]string{
	".pdf":      "application/pdf",
	".txt":      "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
}

func typeByExtension(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if mt, ok := knownExtensions[ext]; ok {
		return mt
	}
	return baseMimeType(mime.TypeByExtension(ext))
}

func baseMimeType(raw string) string {
	mt, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	return mt
}
