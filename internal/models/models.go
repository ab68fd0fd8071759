package models

import "time"

type KnowledgeBase struct {
	KBID      string    `json:"kb_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Document statuses move pending -> processing -> processed | failed.
const (
	DocStatusPending    = "pending"
	DocStatusProcessing = "processing"
	DocStatusProcessed  = "processed"
	DocStatusFailed     = "failed"
)

type Document struct {
	DocID      string    `json:"doc_id"`
	KBID       string    `json:"kb_id"`
	Filename   string    `json:"filename"`
	Format     string    `json:"format,omitempty"`
	Status     string    `json:"status"`
	ChunkCount int       `json:"chunk_count"`
	FailReason string    `json:"fail_reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Chunk struct {
	ChunkID          string    `json:"chunk_id"`
	DocID            string    `json:"doc_id"`
	KBID             string    `json:"kb_id"`
	ChunkIndex       int       `json:"chunk_index"`
	WordStart        int       `json:"word_start"`
	WordEnd          int       `json:"word_end"`
	Text             string    `json:"text"`
	EmbeddingVersion string    `json:"embedding_version"`
	CreatedAt        time.Time `json:"created_at"`
}

// ChunkMatch is one retrieval hit, ordered by descending cosine similarity.
type ChunkMatch struct {
	ChunkID  string  `json:"chunk_id"`
	DocID    string  `json:"doc_id"`
	Filename string  `json:"filename"`
	Score    float64 `json:"score"`
	Text     string  `json:"chunk_text,omitempty"`
	Snippet  string  `json:"snippet"`
}

// Answer carries the generated text plus its provenance trace: the chunk IDs
// the answer was grounded on, in retrieval order.
type Answer struct {
	Text      string       `json:"answer"`
	Sources   []string     `json:"sources"`
	Citations []ChunkMatch `json:"citations"`
	State     string       `json:"state"`
	Fallback  bool         `json:"fallback,omitempty"`
}
