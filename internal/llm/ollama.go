package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llama3.1"
)

// OllamaCompleter calls a local Ollama server's /api/generate endpoint.
type OllamaCompleter struct {
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	stop        []string
	httpClient  *http.Client
}

// NewOllamaCompleter creates a completer for an Ollama server.
func NewOllamaCompleter(cfg Config) *OllamaCompleter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOllamaURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultOllamaModel
	}
	return &OllamaCompleter{
		baseURL:     cfg.BaseURL,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		stop:        cfg.Stop,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Raw     bool           `json:"raw"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Model         string `json:"model"`
	Response      string `json:"response"`
	Done          bool   `json:"done"`
	DoneReason    string `json:"done_reason,omitempty"`
	TotalDuration int64  `json:"total_duration"`
	EvalCount     int    `json:"eval_count,omitempty"`
}

// Complete implements Completer.
func (c *OllamaCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	opts := map[string]any{"temperature": c.temperature}
	if len(c.stop) > 0 {
		opts["stop"] = c.stop
	}
	if c.maxTokens > 0 {
		opts["num_predict"] = c.maxTokens
	}

	data, err := json.Marshal(generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Raw:     true,
		Options: opts,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(body))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	log.Debug().
		Str("model", c.model).
		Str("done_reason", out.DoneReason).
		Int("eval_count", out.EvalCount).
		Dur("total", time.Duration(out.TotalDuration)).
		Msg("ollama completion")

	return trimAtStop(out.Response, c.stop), nil
}
