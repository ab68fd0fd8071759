package providers

import (
	"context"
	"fmt"
	"log/slog"
)

// FailoverEmbedder tries every configured embedding provider in preference
// order and returns the first success.
type FailoverEmbedder struct {
	m *Manager
}

func NewFailoverEmbedder(m *Manager) *FailoverEmbedder {
	return &FailoverEmbedder{m: m}
}

func (f *FailoverEmbedder) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	var lastInfo ProviderInfo
	var lastErr error
	for _, name := range f.m.EmbedOrder() {
		p, ok := f.m.Embedder(name)
		if !ok {
			continue
		}
		vecs, info, err := p.Embed(ctx, req)
		if err == nil {
			return vecs, info, nil
		}
		lastInfo, lastErr = info, err
		if ctx.Err() != nil {
			break
		}
		slog.Warn("embedding provider failed, trying next", "provider", name, "error", err)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no embedding providers configured")
	}
	return nil, lastInfo, lastErr
}

// FailoverLLM is the generation counterpart of FailoverEmbedder.
type FailoverLLM struct {
	m *Manager
}

func NewFailoverLLM(m *Manager) *FailoverLLM {
	return &FailoverLLM{m: m}
}

func (f *FailoverLLM) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	var lastInfo ProviderInfo
	var lastErr error
	for _, name := range f.m.GenOrder() {
		p, ok := f.m.Generator(name)
		if !ok {
			continue
		}
		resp, info, err := p.Generate(ctx, req)
		if err == nil {
			return resp, info, nil
		}
		lastInfo, lastErr = info, err
		if ctx.Err() != nil {
			break
		}
		slog.Warn("llm provider failed, trying next", "provider", name, "error", err)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no llm providers configured")
	}
	return GenerateResponse{}, lastInfo, lastErr
}
