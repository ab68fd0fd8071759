package providers

import (
	"fmt"
	"log/slog"
	"strings"
)

// Manager owns the configured provider instances. Failover order between
// them is driven by the workflows; the manager only resolves names.
type Manager struct {
	embedders  map[string]EmbeddingProvider
	generators map[string]LLMProvider
	embedOrder []string
	genOrder   []string
}

// NewManager instantiates every provider named in the two lists. Providers
// that fail to construct (usually a missing API key) are skipped with a
// warning; the deterministic mock is always registered last as a fallback.
func NewManager(embedList, llmList string, embedDim int) *Manager {
	m := &Manager{
		embedders:  map[string]EmbeddingProvider{},
		generators: map[string]LLMProvider{},
	}

	for _, ref := range ParseProviderList(embedList) {
		p, err := buildEmbedder(ref, embedDim)
		if err != nil {
			slog.Warn("skipping embedding provider", "provider", ref.Raw, "error", err)
			continue
		}
		m.embedders[ref.Raw] = p
		m.embedOrder = append(m.embedOrder, ref.Raw)
	}
	for _, ref := range ParseProviderList(llmList) {
		p, err := buildGenerator(ref)
		if err != nil {
			slog.Warn("skipping llm provider", "provider", ref.Raw, "error", err)
			continue
		}
		m.generators[ref.Raw] = p
		m.genOrder = append(m.genOrder, ref.Raw)
	}

	if _, ok := m.embedders["mock"]; !ok {
		m.embedders["mock"] = NewMockProvider(embedDim)
		m.embedOrder = append(m.embedOrder, "mock")
	}
	if _, ok := m.generators["mock"]; !ok {
		m.generators["mock"] = NewMockProvider(embedDim)
		m.genOrder = append(m.genOrder, "mock")
	}
	return m
}

func buildEmbedder(ref ProviderRef, dim int) (EmbeddingProvider, error) {
	switch strings.ToLower(ref.Name) {
	case "openai":
		return NewOpenAIProvider(ref.KeyAlias)
	case "ollama":
		return NewOllamaProvider(), nil
	case "mock":
		return NewMockProvider(dim), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", ref.Name)
	}
}

func buildGenerator(ref ProviderRef) (LLMProvider, error) {
	switch strings.ToLower(ref.Name) {
	case "openai":
		return NewOpenAIProvider(ref.KeyAlias)
	case "ollama":
		return NewOllamaProvider(), nil
	case "groq":
		return NewGroqProvider(ref.KeyAlias)
	case "mock":
		return NewMockProvider(0), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", ref.Name)
	}
}

// Embedder resolves a provider by its raw configured name.
func (m *Manager) Embedder(name string) (EmbeddingProvider, bool) {
	p, ok := m.embedders[name]
	return p, ok
}

func (m *Manager) Generator(name string) (LLMProvider, bool) {
	p, ok := m.generators[name]
	return p, ok
}

// EmbedProviderByIndex resolves a provider by position in the configured
// preference order. Out-of-range indexes wrap around.
func (m *Manager) EmbedProviderByIndex(idx int) (EmbeddingProvider, string) {
	if len(m.embedOrder) == 0 {
		return NewMockProvider(0), "mock"
	}
	name := m.embedOrder[((idx%len(m.embedOrder))+len(m.embedOrder))%len(m.embedOrder)]
	return m.embedders[name], name
}

func (m *Manager) LLMProviderByIndex(idx int) (LLMProvider, string) {
	if len(m.genOrder) == 0 {
		return NewMockProvider(0), "mock"
	}
	name := m.genOrder[((idx%len(m.genOrder))+len(m.genOrder))%len(m.genOrder)]
	return m.generators[name], name
}

func (m *Manager) EmbedProviderCount() int { return len(m.embedOrder) }
func (m *Manager) LLMProviderCount() int   { return len(m.genOrder) }

// EmbedOrder returns the configured preference order for embedding.
func (m *Manager) EmbedOrder() []string {
	return append([]string(nil), m.embedOrder...)
}

func (m *Manager) GenOrder() []string {
	return append([]string(nil), m.genOrder...)
}
