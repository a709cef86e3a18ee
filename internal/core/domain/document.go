package domain

import "time"

type PolicyDocument struct {
	ID         string    `json:"id"`
	PlanID     string    `json:"plan_id"`
	FileName   string    `json:"file_name"`
	StorageKey string    `json:"storage_key"`
	StorageURL string    `json:"storage_url,omitempty"`
	SizeBytes  int64     `json:"size_bytes"`
	MimeType   string    `json:"mime_type"`
	Processed  bool      `json:"processed"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TextChunk is a chunker output. Index is 0-based and contiguous per document.
type TextChunk struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// PolicyChunk is a persisted, embedded TextChunk.
type PolicyChunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	ChunkText  string    `json:"chunk_text"`
	Embedding  []float32 `json:"-"`
}

// IngestionEvent is published after upload and consumed by the worker.
type IngestionEvent struct {
	DocumentID  string    `json:"document_id"`
	PlanID      string    `json:"plan_id"`
	RequestedAt time.Time `json:"requested_at"`
}

type IngestionReport struct {
	DocumentID string        `json:"document_id"`
	Chunks     int           `json:"chunks"`
	Batches    int           `json:"batches"`
	Duration   time.Duration `json:"duration_ns"`
}

type ReingestReport struct {
	PlanID    string            `json:"plan_id"`
	Documents []IngestionReport `json:"documents"`
}
