package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pipewise/pipewise/config"
	"github.com/pipewise/pipewise/internal/telemetry"
)

// Provider is the chat-completion seam the pipeline calls once per
// record. Implementations make a single attempt: no retry, no
// streaming.
type Provider interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// OpenAIProvider implements Provider against the chat completions API.
type OpenAIProvider struct {
	cfg       config.OpenAIConfig
	client    *http.Client
	telemetry *telemetry.Telemetry
}

// NewOpenAIProvider creates a provider from config.
func NewOpenAIProvider(cfg config.OpenAIConfig, tele *telemetry.Telemetry) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not configured")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIProvider{cfg: cfg, client: &http.Client{Timeout: timeout}, telemetry: tele}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate sends one chat-completion request and returns the first
// choice's content.
func (p *OpenAIProvider) Generate(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	baseURL := p.cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		p.telemetry.ObserveLLM(false, time.Since(start))
		return "", fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		p.telemetry.ObserveLLM(false, time.Since(start))
		return "", fmt.Errorf("OpenAI status %d: %s", resp.StatusCode, string(b))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		p.telemetry.ObserveLLM(false, time.Since(start))
		return "", fmt.Errorf("decode: %w", err)
	}
	if len(out.Choices) == 0 {
		p.telemetry.ObserveLLM(false, time.Since(start))
		return "", fmt.Errorf("no choices in response")
	}
	p.telemetry.ObserveLLM(true, time.Since(start))
	return out.Choices[0].Message.Content, nil
}
