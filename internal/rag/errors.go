package rag

import "errors"

var (
	// ErrEmbeddingService means every embedding attempt failed after retries.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrGenerationService means the LLM call failed after retries.
	ErrGenerationService = errors.New("generation service error")

	// ErrIndexUnavailable means the vector index could not be reached.
	// Callers must not silently retry; the failure is surfaced as-is.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrNoRelevantContext means no stored chunk cleared the similarity
	// threshold. An answer must not be fabricated in this case.
	ErrNoRelevantContext = errors.New("no relevant context found")

	// ErrCancelled means the caller abandoned the request mid-pipeline.
	ErrCancelled = errors.New("request cancelled")
)
