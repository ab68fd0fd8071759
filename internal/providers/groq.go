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

const groqChatURL = "https://api.groq.com/openai/v1/chat/completions"

// GroqProvider is generation-only. Groq serves an OpenAI-compatible chat API.
type GroqProvider struct {
	apiKey   string
	keyAlias string
	model    string
	client   *http.Client
}

func NewGroqProvider(keyAlias string) (*GroqProvider, error) {
	env := "MEDIBOT_GROQ_API_KEY"
	if keyAlias != "" {
		env = env + "_" + strings.ToUpper(keyAlias)
	}
	key := os.Getenv(env)
	if key == "" {
		return nil, fmt.Errorf("groq: %s not set", env)
	}
	model := os.Getenv("MEDIBOT_GROQ_CHAT_MODEL")
	if model == "" {
		model = "llama-3.1-8b-instant"
	}
	return &GroqProvider{
		apiKey:   key,
		keyAlias: keyAlias,
		model:    model,
		client:   &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (p *GroqProvider) info() ProviderInfo {
	return ProviderInfo{Name: "groq", Model: p.model, Key: p.keyAlias}
}

func (p *GroqProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	messages := []map[string]string{}
	if req.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": buildUserPrompt(req)})

	body, err := json.Marshal(map[string]any{
		"model":       p.model,
		"messages":    messages,
		"temperature": 0.2,
	})
	if err != nil {
		return GenerateResponse{}, p.info(), err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, groqChatURL, bytes.NewReader(body))
	if err != nil {
		return GenerateResponse{}, p.info(), err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return GenerateResponse{}, p.info(), err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return GenerateResponse{}, p.info(), err
	}
	if resp.StatusCode != http.StatusOK {
		return GenerateResponse{}, p.info(), fmt.Errorf("groq: status %d: %s", resp.StatusCode, truncate(string(raw), 300))
	}
	var res struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return GenerateResponse{}, p.info(), err
	}
	if len(res.Choices) == 0 {
		return GenerateResponse{}, p.info(), fmt.Errorf("groq: empty choices")
	}
	return GenerateResponse{Text: strings.TrimSpace(res.Choices[0].Message.Content)}, p.info(), nil
}
