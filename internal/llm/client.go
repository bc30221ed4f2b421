// Package llm abstracts the external language model used for answer
// synthesis, relation extraction, and memory summarization.
package llm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/oboeru/internal/config"
)

// ErrUnavailable is returned by the disabled client; callers degrade to
// extractive answers and truncation-based summaries.
var ErrUnavailable = errors.New("no language model configured")

// Message is one turn of a chat exchange.
type Message struct {
	Role    string
	Content string
}

// Client is a minimal chat interface over a language model.
type Client interface {
	// Chat sends a system prompt plus conversation and returns the reply.
	Chat(ctx context.Context, system string, messages []Message) (string, error)
	// ChatStream is Chat with incremental delivery. The returned channel is
	// closed when the reply is complete; a late error is sent on errc.
	ChatStream(ctx context.Context, system string, messages []Message) (<-chan string, <-chan error)
	// Summarize condenses texts into a short summary.
	Summarize(ctx context.Context, texts []string) (string, error)
	// Available reports whether calls can succeed.
	Available() bool
}

// NewClient builds the configured provider.
func NewClient(cfg *config.LLMConfig, logger *zap.Logger) (Client, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicClient(cfg, logger)
	case "none", "":
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s (supported: anthropic, none)", cfg.Provider)
	}
}
