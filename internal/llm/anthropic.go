package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog/log"
)

const defaultAnthropicModel = "claude-sonnet-4-6"

// AnthropicCompleter sends each prompt as a single user message to the
// Anthropic Messages API (or a compatible proxy when BaseURL is set).
type AnthropicCompleter struct {
	client      *anthropic.Client
	model       string
	maxTokens   int
	temperature float64
	stop        []string
}

// NewAnthropicCompleter creates a completer backed by Anthropic Claude.
func NewAnthropicCompleter(cfg Config) *AnthropicCompleter {
	if cfg.Model == "" {
		cfg.Model = defaultAnthropicModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicCompleter{
		client:      anthropic.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		stop:        cfg.Stop,
	}
}

// Complete implements Completer.
func (c *AnthropicCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.F(anthropic.Model(c.model)),
		MaxTokens:   anthropic.F(int64(c.maxTokens)),
		Temperature: anthropic.F(c.temperature),
		Messages: anthropic.F([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		}),
	}
	if len(c.stop) > 0 {
		params.StopSequences = anthropic.F(c.stop)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if b, ok := block.AsUnion().(anthropic.TextBlock); ok {
			sb.WriteString(b.Text)
		}
	}

	log.Debug().
		Str("model", c.model).
		Str("stop_reason", string(resp.StopReason)).
		Int64("input_tokens", resp.Usage.InputTokens).
		Int64("output_tokens", resp.Usage.OutputTokens).
		Msg("anthropic completion")

	return trimAtStop(sb.String(), c.stop), nil
}
