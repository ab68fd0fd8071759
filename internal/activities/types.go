package activities

type ListDocumentsInput struct {
	InputDir string `json:"input_dir"`
}

type ListDocumentsOutput struct {
	Paths []string `json:"paths"`
}

type ComputeDocIDInput struct {
	DocPath string `json:"doc_path"`
}

type ComputeDocIDOutput struct {
	DocID string `json:"doc_id"`
}

type ExtractTextInput struct {
	DocPath string `json:"doc_path"`
}

type ExtractTextOutput struct {
	Text   string `json:"text"`
	Format string `json:"format"`
	Pages  int    `json:"pages,omitempty"`
}

type ChunkTextInput struct {
	DocID        string `json:"doc_id"`
	KBID         string `json:"kb_id"`
	Text         string `json:"text"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
	Version      string `json:"version"`
}

type ChunkItem struct {
	ChunkID    string `json:"chunk_id"`
	DocID      string `json:"doc_id"`
	KBID       string `json:"kb_id"`
	ChunkIndex int    `json:"chunk_index"`
	WordStart  int    `json:"word_start"`
	WordEnd    int    `json:"word_end"`
	Text       string `json:"text"`
}

type ChunkTextOutput struct {
	Chunks []ChunkItem `json:"chunks"`
}

type EmbedChunksInput struct {
	Operation     string      `json:"operation"`
	KBID          string      `json:"kb_id"`
	DocID         string      `json:"doc_id"`
	ProviderIndex int         `json:"provider_index"`
	Input         []ChunkItem `json:"input"`
}

type EmbedChunksOutput struct {
	Vectors      [][]float32 `json:"vectors"`
	ProviderName string      `json:"provider_name"`
	Model        string      `json:"model"`
}

type UpsertChunksInput struct {
	Chunks           []ChunkItem `json:"chunks"`
	Vectors          [][]float32 `json:"vectors,omitempty"`
	EmbeddingVersion string      `json:"embedding_version"`
	PruneStale       bool        `json:"prune_stale"`
}

type UpsertChunksOutput struct {
	Upserted int   `json:"upserted"`
	Pruned   int64 `json:"pruned"`
}

type UpdateDocumentStatusInput struct {
	DocID      string `json:"doc_id"`
	KBID       string `json:"kb_id"`
	Filename   string `json:"filename"`
	Format     string `json:"format"`
	Status     string `json:"status"`
	FailReason string `json:"fail_reason"`
	ChunkCount int    `json:"chunk_count"`
}

type WriteDocArtifactsInput struct {
	KBID          string         `json:"kb_id"`
	DocID         string         `json:"doc_id"`
	Metadata      map[string]any `json:"metadata"`
	Chunks        []ChunkItem    `json:"chunks"`
	ProcessingLog map[string]any `json:"processing_log"`
}

type WriteKBSummaryInput struct {
	KBID    string         `json:"kb_id"`
	Summary map[string]any `json:"summary"`
}

type LogProviderCallInput struct {
	CallID       string `json:"call_id"`
	Operation    string `json:"operation"`
	KBID         string `json:"kb_id"`
	DocID        string `json:"doc_id"`
	ProviderName string `json:"provider_name"`
	Model        string `json:"model"`
	RequestID    string `json:"request_id"`
	Status       string `json:"status"`
	ErrorType    string `json:"error_type"`
}

type InvalidateAnswerCacheInput struct {
	KBID string `json:"kb_id"`
}
