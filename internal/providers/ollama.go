package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// OllamaProvider talks to a local Ollama daemon. It serves both embedding
// and generation so the whole pipeline can run without external APIs.
type OllamaProvider struct {
	baseURL    string
	embedModel string
	chatModel  string
	client     *http.Client
}

func NewOllamaProvider() *OllamaProvider {
	base := os.Getenv("MEDIBOT_OLLAMA_URL")
	if base == "" {
		base = "http://localhost:11434"
	}
	embedModel := os.Getenv("MEDIBOT_OLLAMA_EMBED_MODEL")
	if embedModel == "" {
		embedModel = "all-minilm"
	}
	chatModel := os.Getenv("MEDIBOT_OLLAMA_CHAT_MODEL")
	if chatModel == "" {
		chatModel = "llama3.2"
	}
	return &OllamaProvider{
		baseURL:    strings.TrimRight(base, "/"),
		embedModel: embedModel,
		chatModel:  chatModel,
		client:     &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *OllamaProvider) info(model string) ProviderInfo {
	return ProviderInfo{Name: "ollama", Model: model}
}

func (p *OllamaProvider) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama: status %d: %s", resp.StatusCode, truncate(string(raw), 300))
	}
	return json.Unmarshal(raw, out)
}

func (p *OllamaProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	out := make([][]float32, len(req.Inputs))
	for i, in := range req.Inputs {
		var res struct {
			Embedding []float32 `json:"embedding"`
		}
		payload := map[string]any{"model": p.embedModel, "prompt": in}
		if err := p.post(ctx, "/api/embeddings", payload, &res); err != nil {
			return nil, p.info(p.embedModel), err
		}
		if len(res.Embedding) == 0 {
			return nil, p.info(p.embedModel), fmt.Errorf("ollama: empty embedding for input %d", i)
		}
		out[i] = res.Embedding
	}
	return out, p.info(p.embedModel), nil
}

func (p *OllamaProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	var b strings.Builder
	if req.System != "" {
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}
	b.WriteString(buildUserPrompt(req))

	var res struct {
		Response string `json:"response"`
	}
	payload := map[string]any{
		"model":  p.chatModel,
		"prompt": b.String(),
		"stream": false,
	}
	if err := p.post(ctx, "/api/generate", payload, &res); err != nil {
		return GenerateResponse{}, p.info(p.chatModel), err
	}
	text := strings.TrimSpace(res.Response)
	if text == "" {
		return GenerateResponse{}, p.info(p.chatModel), fmt.Errorf("ollama: empty response")
	}
	return GenerateResponse{Text: text}, p.info(p.chatModel), nil
}
