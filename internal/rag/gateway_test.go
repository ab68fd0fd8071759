package rag

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"medibot/internal/providers"
)

type flakyEmbedder struct {
	mu       sync.Mutex
	calls    int
	failures int
	failWith error
	dim      int
}

func (f *flakyEmbedder) Embed(_ context.Context, req providers.EmbedRequest) ([][]float32, providers.ProviderInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return nil, providers.ProviderInfo{Name: "flaky"}, f.failWith
	}
	out := make([][]float32, len(req.Inputs))
	for i := range out {
		out[i] = make([]float32, f.dim)
		out[i][0] = float32(i + 1)
	}
	return out, providers.ProviderInfo{Name: "flaky"}, nil
}

func TestGatewayRetriesTransientFailuresTransparently(t *testing.T) {
	f := &flakyEmbedder{failures: 2, failWith: errors.New("request timeout"), dim: 4}
	g := NewEmbeddingGateway(f, 4, 8, 3, 2, WithBaseDelay(time.Millisecond))

	vecs, err := g.EmbedTexts(context.Background(), []string{"fever", "cough"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	require.Equal(t, 3, f.calls)
}

func TestGatewayGivesUpOnPermanentError(t *testing.T) {
	f := &flakyEmbedder{failures: 10, failWith: errors.New("status 401: invalid api key"), dim: 4}
	g := NewEmbeddingGateway(f, 4, 8, 3, 2, WithBaseDelay(time.Millisecond))

	_, err := g.EmbedTexts(context.Background(), []string{"fever"})
	require.ErrorIs(t, err, ErrEmbeddingService)
	require.Equal(t, 1, f.calls, "permanent errors must not be retried")
}

func TestGatewayExhaustsRetriesThenFails(t *testing.T) {
	f := &flakyEmbedder{failures: 10, failWith: errors.New("status 503: service unavailable"), dim: 4}
	g := NewEmbeddingGateway(f, 4, 8, 3, 2, WithBaseDelay(time.Millisecond))

	_, err := g.EmbedTexts(context.Background(), []string{"fever"})
	require.ErrorIs(t, err, ErrEmbeddingService)
	require.Equal(t, 3, f.calls)
}

func TestGatewayPreservesOrderAcrossBatches(t *testing.T) {
	f := &orderEmbedder{dim: 4}
	g := NewEmbeddingGateway(f, 4, 2, 3, 3, WithBaseDelay(time.Millisecond))

	texts := make([]string, 7)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk-%d", i)
	}
	vecs, err := g.EmbedTexts(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, 7)
	for i, v := range vecs {
		require.Equal(t, float32(i), v[0], "vector %d out of order", i)
	}
}

type orderEmbedder struct{ dim int }

func (o *orderEmbedder) Embed(_ context.Context, req providers.EmbedRequest) ([][]float32, providers.ProviderInfo, error) {
	out := make([][]float32, len(req.Inputs))
	for i, in := range req.Inputs {
		var idx int
		fmt.Sscanf(in, "chunk-%d", &idx)
		out[i] = make([]float32, o.dim)
		out[i][0] = float32(idx)
	}
	return out, providers.ProviderInfo{Name: "order"}, nil
}

func TestGatewayRejectsWrongDimension(t *testing.T) {
	f := &flakyEmbedder{dim: 3}
	g := NewEmbeddingGateway(f, 4, 8, 3, 2, WithBaseDelay(time.Millisecond))

	_, err := g.EmbedTexts(context.Background(), []string{"fever"})
	require.ErrorIs(t, err, ErrEmbeddingService)
	require.Contains(t, err.Error(), "dimension")
}

func TestGatewayCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &flakyEmbedder{dim: 4}
	g := NewEmbeddingGateway(f, 4, 8, 3, 2, WithBaseDelay(time.Millisecond))
	_, err := g.EmbedTexts(ctx, []string{"fever"})
	require.ErrorIs(t, err, ErrCancelled)
}
