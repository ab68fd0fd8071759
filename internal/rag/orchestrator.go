package rag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"medibot/internal/models"
	"medibot/internal/providers"
	"medibot/internal/util"
)

// Pipeline states, reported on the Answer for observability.
const (
	StateIdle       = "idle"
	StateEmbedding  = "embedding"
	StateRetrieving = "retrieving"
	StateGenerating = "generating"
	StateDone       = "done"
	StateFailed     = "failed"
)

// Searcher runs a similarity query against the vector index.
type Searcher interface {
	Search(ctx context.Context, kbID string, vec []float32, topK int) ([]models.ChunkMatch, error)
}

type OrchestratorConfig struct {
	TopK               int
	MinSimilarity      float64
	ContextTokenBudget int
	RetryAttempts      int
	QueryConcurrency   int
	ExtractiveFallback bool
	RetryBaseDelay     time.Duration
}

// Orchestrator runs one question through embed -> retrieve -> generate.
// A semaphore caps in-flight questions so a burst cannot starve ingestion.
type Orchestrator struct {
	gateway   *EmbeddingGateway
	searcher  Searcher
	generator providers.LLMProvider
	cfg       OrchestratorConfig
	sem       chan struct{}
}

func NewOrchestrator(g *EmbeddingGateway, s Searcher, llm providers.LLMProvider, cfg OrchestratorConfig) *Orchestrator {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.QueryConcurrency <= 0 {
		cfg.QueryConcurrency = 8
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 500 * time.Millisecond
	}
	return &Orchestrator{
		gateway:   g,
		searcher:  s,
		generator: llm,
		cfg:       cfg,
		sem:       make(chan struct{}, cfg.QueryConcurrency),
	}
}

// Answer resolves a question against one knowledge base. topK overrides the
// configured retrieval width when positive. On failure the returned Answer
// carries the state the pipeline failed in.
func (o *Orchestrator) Answer(ctx context.Context, kbID, question string, topK int) (models.Answer, error) {
	ans := models.Answer{State: StateIdle}
	if topK <= 0 {
		topK = o.cfg.TopK
	}

	select {
	case o.sem <- struct{}{}:
		defer func() { <-o.sem }()
	case <-ctx.Done():
		ans.State = StateFailed
		return ans, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	}

	ans.State = StateEmbedding
	qvec, err := o.gateway.EmbedQuery(ctx, question)
	if err != nil {
		ans.State = StateFailed
		return ans, err
	}

	ans.State = StateRetrieving
	matches, err := o.searcher.Search(ctx, kbID, qvec, topK)
	if err != nil {
		ans.State = StateFailed
		if cerr := ctx.Err(); cerr != nil {
			return ans, fmt.Errorf("%w: %v", ErrCancelled, cerr)
		}
		return ans, err
	}

	kept := filterByThreshold(matches, o.cfg.MinSimilarity)
	if len(kept) == 0 {
		ans.State = StateFailed
		return ans, ErrNoRelevantContext
	}
	kept = fitBudget(kept, o.cfg.ContextTokenBudget)

	ans.State = StateGenerating
	text, fallback, err := o.generate(ctx, question, kept)
	if err != nil {
		ans.State = StateFailed
		return ans, err
	}

	for i := range kept {
		if kept[i].Snippet == "" {
			kept[i].Snippet = util.DisplaySnippet(kept[i].Text, 280)
		}
	}

	ans.Text = text
	ans.Fallback = fallback
	ans.Citations = kept
	ans.Sources = sourceChunkIDs(kept)
	ans.State = StateDone
	return ans, nil
}

func (o *Orchestrator) generate(ctx context.Context, question string, matches []models.ChunkMatch) (string, bool, error) {
	req := providers.GenerateRequest{
		Operation: "answer",
		System:    SystemPrompt,
		Prompt:    question,
		Context:   BuildContext(matches),
	}

	var lastErr error
	delay := o.cfg.RetryBaseDelay
	for attempt := 1; attempt <= o.cfg.RetryAttempts; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return "", false, fmt.Errorf("%w: %v", ErrCancelled, cerr)
		}
		res, info, err := o.generator.Generate(ctx, req)
		if err == nil {
			return res.Text, false, nil
		}
		lastErr = err
		class := providers.ClassifyError(err)
		if !providers.Retryable(class) {
			break
		}
		slog.Warn("generation attempt failed, retrying",
			"provider", info.Name, "attempt", attempt, "class", string(class), "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", false, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
		delay *= 2
	}

	if o.cfg.ExtractiveFallback {
		slog.Warn("generation unavailable, serving extractive fallback", "error", lastErr)
		return ExtractiveFallback(question, matches), true, nil
	}
	return "", false, fmt.Errorf("%w: %v", ErrGenerationService, lastErr)
}

func filterByThreshold(matches []models.ChunkMatch, min float64) []models.ChunkMatch {
	out := make([]models.ChunkMatch, 0, len(matches))
	for _, m := range matches {
		if m.Score >= min {
			out = append(out, m)
		}
	}
	return out
}

// fitBudget keeps matches in descending-similarity order until the token
// budget is spent. The first match that does not fit whole is truncated to
// the remaining budget, so the assembled context never exceeds it. The best
// match always survives, truncated if the budget is smaller than its text.
func fitBudget(matches []models.ChunkMatch, budget int) []models.ChunkMatch {
	if budget <= 0 {
		return matches
	}
	out := make([]models.ChunkMatch, 0, len(matches))
	remaining := budget
	for _, m := range matches {
		need := EstimateTokens(m.Text)
		if need <= remaining {
			out = append(out, m)
			remaining -= need
			continue
		}
		if remaining > 0 {
			m.Text = TruncateTokens(m.Text, remaining)
			if m.Text != "" || len(out) == 0 {
				out = append(out, m)
			}
		}
		break
	}
	return out
}

// sourceChunkIDs is the answer's provenance trace: the chunk identifiers the
// context was assembled from, in retrieval order.
func sourceChunkIDs(matches []models.ChunkMatch) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.ChunkID)
	}
	return out
}
