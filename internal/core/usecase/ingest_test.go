package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/insurance-upsell/internal/core/domain"
)

func newUploadFixture() (*UploadPolicyUseCase, *documentRepoFake, *storageFake, *queueFake) {
	plans := newPlanRepoFake(domain.InsurancePlan{ID: "plan-1"})
	docs := newDocumentRepoFake()
	storage := newStorageFake()
	queue := &queueFake{}
	return NewUploadPolicyUseCase(plans, docs, storage, queue, "https://cdn.example.com/"), docs, storage, queue
}

func TestUploadStoresRecordsAndQueues(t *testing.T) {
	uc, docs, storage, queue := newUploadFixture()

	doc, err := uc.Upload(context.Background(), "plan-1", "AVB Handy 2024.pdf", "", strings.NewReader("%PDF-1.4 body"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.HasPrefix(doc.StorageKey, "policy-files/plan-1/") || !strings.HasSuffix(doc.StorageKey, "-AVB_Handy_2024.pdf") {
		t.Fatalf("unexpected storage key %q", doc.StorageKey)
	}
	if doc.StorageURL != "https://cdn.example.com/"+doc.StorageKey {
		t.Fatalf("unexpected storage url %q", doc.StorageURL)
	}
	if doc.MimeType != "application/pdf" || doc.SizeBytes != int64(len("%PDF-1.4 body")) || doc.Processed {
		t.Fatalf("unexpected document %+v", doc)
	}
	if string(storage.saved[doc.StorageKey]) != "%PDF-1.4 body" {
		t.Fatal("expected file body stored")
	}
	if len(docs.created) != 1 {
		t.Fatalf("expected one document row, got %d", len(docs.created))
	}
	if len(queue.published) != 1 || queue.published[0].DocumentID != doc.ID || queue.published[0].PlanID != "plan-1" {
		t.Fatalf("unexpected published events %+v", queue.published)
	}
}

func TestUploadRejectsUnknownPlan(t *testing.T) {
	uc, _, storage, _ := newUploadFixture()

	_, err := uc.Upload(context.Background(), "missing", "a.pdf", "application/pdf", strings.NewReader("x"))
	if !domain.IsKind(err, domain.ErrPlanNotFound) {
		t.Fatalf("expected plan not found, got %v", err)
	}
	if len(storage.saved) != 0 {
		t.Fatal("expected nothing stored")
	}
}

func TestUploadRejectsUnsupportedAndEmptyFiles(t *testing.T) {
	uc, _, storage, _ := newUploadFixture()

	if _, err := uc.Upload(context.Background(), "plan-1", "img.png", "image/png", strings.NewReader("x")); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for png, got %v", err)
	}
	if _, err := uc.Upload(context.Background(), "plan-1", "a.pdf", "application/pdf", strings.NewReader("")); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty file, got %v", err)
	}
	if len(storage.saved) != 0 {
		t.Fatalf("expected empty upload removed, got %d blobs", len(storage.saved))
	}
}

func TestUploadPropagatesQueueError(t *testing.T) {
	uc, _, _, queue := newUploadFixture()
	queue.err = errors.New("nats down")

	if _, err := uc.Upload(context.Background(), "plan-1", "a.txt", "text/plain; charset=utf-8", strings.NewReader("x")); err == nil {
		t.Fatal("expected publish error")
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"../../etc/passwd":      "passwd",
		"Bedingungen ü 2024.pdf": "Bedingungen___2024.pdf",
		"":                       "policy.pdf",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
