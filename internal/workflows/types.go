package workflows

type KnowledgeBaseIngestInput struct {
	KBID                  string `json:"kb_id"`
	InputDir              string `json:"input_dir"`
	MaxConcurrentChildren int    `json:"max_concurrent_children"`
	EmbedProviders        int    `json:"embed_providers"`
	CooldownSeconds       int    `json:"cooldown_seconds"`
	ChunkSize             int    `json:"chunk_size"`
	ChunkOverlap          int    `json:"chunk_overlap"`
	ChunkVersion          string `json:"chunk_version"`
	EmbedVersion          string `json:"embed_version"`
}

type DocumentProcessInput struct {
	KBID            string `json:"kb_id"`
	DocPath         string `json:"doc_path"`
	ChunkSize       int    `json:"chunk_size"`
	ChunkOverlap    int    `json:"chunk_overlap"`
	ChunkVersion    string `json:"chunk_version"`
	EmbedVersion    string `json:"embed_version"`
	EmbedProviders  int    `json:"embed_providers"`
	CooldownSeconds int    `json:"cooldown_seconds"`
}

// DocumentProcessResult is what the per-document workflow reports back to
// the knowledge base ingest, enough for progress aggregation.
type DocumentProcessResult struct {
	Status     string `json:"status"`
	DocID      string `json:"doc_id"`
	ChunkCount int    `json:"chunk_count"`
}

type DocumentStatus struct {
	DocID       string            `json:"doc_id"`
	DocPath     string            `json:"doc_path"`
	CurrentStep string            `json:"current_step"`
	Status      string            `json:"status"`
	FailReason  string            `json:"fail_reason,omitempty"`
	ChunkCount  int               `json:"chunk_count"`
	Providers   []string          `json:"providers_used"`
	RetryCounts map[string]int    `json:"retry_counts"`
	Steps       map[string]string `json:"steps"`
}

type KnowledgeBaseIngestProgress struct {
	KBID          string            `json:"kb_id"`
	Total         int               `json:"total"`
	Done          int               `json:"done"`
	Failed        int               `json:"failed"`
	PerDocument   map[string]string `json:"per_document_status"`
	ChunkCounts   map[string]int    `json:"per_document_chunks"`
	ChildWorkflow map[string]string `json:"child_workflow_ids,omitempty"`
}
