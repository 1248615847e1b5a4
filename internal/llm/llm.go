// Package llm provides the language-model capability used by the reasoning
// loop: a single synchronous text-in/text-out completion call.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// DefaultStop is where a ReAct completion should end: the loop, not the model,
// supplies observations.
var DefaultStop = []string{"\nObservation:"}

// Completer is the interface all LLM providers implement.
type Completer interface {
	// Complete returns the model's continuation of prompt.
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a plain function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Config selects and configures a provider.
type Config struct {
	Provider    string // "anthropic" or "ollama"
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	Stop        []string
}

// New builds the Completer named by cfg.Provider.
func New(cfg Config) (Completer, error) {
	if len(cfg.Stop) == 0 {
		cfg.Stop = DefaultStop
	}
	switch strings.ToLower(cfg.Provider) {
	case "", "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic: api key is required")
		}
		return NewAnthropicCompleter(cfg), nil
	case "ollama":
		return NewOllamaCompleter(cfg), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q (valid: anthropic, ollama)", cfg.Provider)
	}
}

// trimAtStop cuts s at the first stop sequence. Providers that already honor
// stop sequences leave nothing to cut; the others overrun.
func trimAtStop(s string, stop []string) string {
	cut := len(s)
	for _, seq := range stop {
		if seq == "" {
			continue
		}
		if i := strings.Index(s, seq); i >= 0 && i < cut {
			cut = i
		}
	}
	return s[:cut]
}
