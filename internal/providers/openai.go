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

const (
	openaiEmbedURL = "https://api.openai.com/v1/embeddings"
	openaiChatURL  = "https://api.openai.com/v1/chat/completions"
)

type OpenAIProvider struct {
	apiKey     string
	keyAlias   string
	embedModel string
	chatModel  string
	client     *http.Client
}

// NewOpenAIProvider reads the key from MEDIBOT_OPENAI_API_KEY, or from
// MEDIBOT_OPENAI_API_KEY_<ALIAS> when a key alias is configured.
func NewOpenAIProvider(keyAlias string) (*OpenAIProvider, error) {
	env := "MEDIBOT_OPENAI_API_KEY"
	if keyAlias != "" {
		env = env + "_" + strings.ToUpper(keyAlias)
	}
	key := os.Getenv(env)
	if key == "" {
		return nil, fmt.Errorf("openai: %s not set", env)
	}
	embedModel := os.Getenv("MEDIBOT_OPENAI_EMBED_MODEL")
	if embedModel == "" {
		embedModel = "text-embedding-3-small"
	}
	chatModel := os.Getenv("MEDIBOT_OPENAI_CHAT_MODEL")
	if chatModel == "" {
		chatModel = "gpt-4o-mini"
	}
	return &OpenAIProvider{
		apiKey:     key,
		keyAlias:   keyAlias,
		embedModel: embedModel,
		chatModel:  chatModel,
		client:     &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (p *OpenAIProvider) info(model string) ProviderInfo {
	return ProviderInfo{Name: "openai", Model: model, Key: p.keyAlias}
}

func (p *OpenAIProvider) post(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

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
		return fmt.Errorf("openai: status %d: %s", resp.StatusCode, truncate(string(raw), 300))
	}
	return json.Unmarshal(raw, out)
}

func (p *OpenAIProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	payload := map[string]any{
		"model": p.embedModel,
		"input": req.Inputs,
	}
	if req.Dimension > 0 {
		payload["dimensions"] = req.Dimension
	}
	var res struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := p.post(ctx, openaiEmbedURL, payload, &res); err != nil {
		return nil, p.info(p.embedModel), err
	}
	if len(res.Data) != len(req.Inputs) {
		return nil, p.info(p.embedModel), fmt.Errorf("openai: got %d embeddings for %d inputs", len(res.Data), len(req.Inputs))
	}
	out := make([][]float32, len(req.Inputs))
	for _, d := range res.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, p.info(p.embedModel), fmt.Errorf("openai: embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, p.info(p.embedModel), nil
}

func (p *OpenAIProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	messages := []map[string]string{}
	if req.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": buildUserPrompt(req)})

	payload := map[string]any{
		"model":       p.chatModel,
		"messages":    messages,
		"temperature": 0.2,
	}
	var res struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := p.post(ctx, openaiChatURL, payload, &res); err != nil {
		return GenerateResponse{}, p.info(p.chatModel), err
	}
	if len(res.Choices) == 0 {
		return GenerateResponse{}, p.info(p.chatModel), fmt.Errorf("openai: empty choices")
	}
	return GenerateResponse{Text: strings.TrimSpace(res.Choices[0].Message.Content)}, p.info(p.chatModel), nil
}

func buildUserPrompt(req GenerateRequest) string {
	if len(req.Context) == 0 {
		return req.Prompt
	}
	var b strings.Builder
	b.WriteString("Context:\n")
	for i, c := range req.Context {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, c)
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(req.Prompt)
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
