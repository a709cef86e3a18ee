package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/insurance-upsell/internal/core/domain"
	"github.com/kirillkom/insurance-upsell/internal/core/ports"
)

type UploadPolicyUseCase struct {
	plans         ports.PlanRepository
	docs          ports.PolicyDocumentRepository
	storage       ports.ObjectStorage
	queue         ports.MessageQueue
	publicBaseURL string
}

func NewUploadPolicyUseCase(
	plans ports.PlanRepository,
	docs ports.PolicyDocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	publicBaseURL string,
) *UploadPolicyUseCase {
	return &UploadPolicyUseCase{
		plans:         plans,
		docs:          docs,
		storage:       storage,
		queue:         queue,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// Upload stores the file under the plan, records the document and queues it
// for ingestion.
func (uc *UploadPolicyUseCase) Upload(
	ctx context.Context,
	planID, filename, mimeType string,
	body io.Reader,
) (*domain.PolicyDocument, error) {
	if _, err := uc.plans.GetByID(ctx, planID); err != nil {
		return nil, fmt.Errorf("fetch plan by id: %w", err)
	}

	mimeType = resolveMimeType(filename, mimeType)
	if !supportedMimeType(mimeType) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload policy", fmt.Errorf("unsupported file type %q", mimeType))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("policy-files/%s/%s-%s", planID, id, sanitizeFilename(filename))
	now := time.Now().UTC()

	counter := &countingReader{r: body}
	if err := uc.storage.Save(ctx, storageKey, counter); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}
	if counter.n == 0 {
		_ = uc.storage.Delete(ctx, storageKey)
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload policy", errors.New("file is empty"))
	}

	doc := &domain.PolicyDocument{
		ID:         id,
		PlanID:     planID,
		FileName:   filename,
		StorageKey: storageKey,
		StorageURL: uc.storageURL(storageKey),
		SizeBytes:  counter.n,
		MimeType:   mimeType,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := uc.docs.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document metadata: %w", err)
	}

	event := domain.IngestionEvent{DocumentID: doc.ID, PlanID: planID, RequestedAt: now}
	if err := uc.queue.PublishIngestion(ctx, event); err != nil {
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}

	return doc, nil
}

func (uc *UploadPolicyUseCase) storageURL(key string) string {
	if uc.publicBaseURL == "" {
		return ""
	}
	return uc.publicBaseURL + "/" + key
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func resolveMimeType(filename, mimeType string) string {
	mimeType = strings.TrimSpace(mimeType)
	if mimeType != "" && mimeType != "application/octet-stream" {
		if parsed, _, err := mime.ParseMediaType(mimeType); err == nil {
			return parsed
		}
		return mimeType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain"
	case ".md":
		return "text/markdown"
	}
	return "application/octet-stream"
}

func supportedMimeType(mimeType string) bool {
	switch mimeType {
	case "application/pdf", "text/plain", "text/markdown":
		return true
	}
	return false
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == "/" {
		return "policy.pdf"
	}
	return base
}
