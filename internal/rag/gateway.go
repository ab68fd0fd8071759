package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"medibot/internal/providers"
)

// EmbeddingGateway fronts an embedding provider with batching, bounded
// concurrency and transparent retry. Callers hand it texts and get vectors
// back in the same order; transient provider hiccups never leak out.
type EmbeddingGateway struct {
	provider  providers.EmbeddingProvider
	dim       int
	batchSize int
	attempts  int
	baseDelay time.Duration
	sem       chan struct{}
}

type GatewayOption func(*EmbeddingGateway)

func WithBaseDelay(d time.Duration) GatewayOption {
	return func(g *EmbeddingGateway) { g.baseDelay = d }
}

func NewEmbeddingGateway(p providers.EmbeddingProvider, dim, batchSize, attempts, concurrency int, opts ...GatewayOption) *EmbeddingGateway {
	if batchSize <= 0 {
		batchSize = 64
	}
	if attempts <= 0 {
		attempts = 3
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	g := &EmbeddingGateway{
		provider:  p,
		dim:       dim,
		batchSize: batchSize,
		attempts:  attempts,
		baseDelay: 500 * time.Millisecond,
		sem:       make(chan struct{}, concurrency),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// EmbedTexts embeds every text, preserving input order. Batches run
// concurrently up to the gateway's limit.
func (g *EmbeddingGateway) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for start := 0; start < len(texts); start += g.batchSize {
		end := start + g.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			select {
			case g.sem <- struct{}{}:
				defer func() { <-g.sem }()
			case <-ctx.Done():
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
				}
				mu.Unlock()
				return
			}
			vecs, err := g.embedBatch(ctx, texts[start:end])
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			copy(out[start:end], vecs)
		}(start, end)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// EmbedQuery embeds a single question.
func (g *EmbeddingGateway) EmbedQuery(ctx context.Context, question string) ([]float32, error) {
	vecs, err := g.embedBatch(ctx, []string{question})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (g *EmbeddingGateway) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error
	delay := g.baseDelay
	for attempt := 1; attempt <= g.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		vecs, info, err := g.provider.Embed(ctx, providers.EmbedRequest{
			Operation: "embed",
			Inputs:    batch,
			Dimension: g.dim,
		})
		if err == nil {
			if verr := g.validate(vecs, len(batch)); verr != nil {
				return nil, fmt.Errorf("%w: %v", ErrEmbeddingService, verr)
			}
			return vecs, nil
		}
		lastErr = err
		class := providers.ClassifyError(err)
		if !providers.Retryable(class) {
			break
		}
		slog.Warn("embedding attempt failed, retrying",
			"provider", info.Name, "attempt", attempt, "class", string(class), "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
		delay *= 2
	}
	return nil, fmt.Errorf("%w: %v", ErrEmbeddingService, lastErr)
}

func (g *EmbeddingGateway) validate(vecs [][]float32, want int) error {
	if len(vecs) != want {
		return fmt.Errorf("got %d vectors for %d inputs", len(vecs), want)
	}
	for i, v := range vecs {
		if len(v) != g.dim {
			return fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), g.dim)
		}
	}
	return nil
}
