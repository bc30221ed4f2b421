package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/hyperjump/oboeru/internal/config"
	"github.com/hyperjump/oboeru/internal/models"
)

const summarySystemPrompt = "You condense conversation logs into terse factual summaries. " +
	"Keep decisions, facts, and open questions; drop pleasantries. Answer with the summary only."

// AnthropicClient talks to the Anthropic Messages API.
type AnthropicClient struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
	logger    *zap.Logger
}

// NewAnthropicClient builds a client from configuration. An empty API key is
// an error: the caller should configure provider "none" instead.
func NewAnthropicClient(cfg *config.LLMConfig, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic provider requires an api key")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
	return &AnthropicClient{
		client:    &client,
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
		timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
		logger:    logger,
	}, nil
}

// Available reports true; failures surface per call.
func (c *AnthropicClient) Available() bool { return true }

func (c *AnthropicClient) params(system string, messages []Message) anthropic.MessageNewParams {
	apiMessages := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		block := anthropic.NewTextBlock(msg.Content)
		if msg.Role == models.RoleAssistant {
			apiMessages = append(apiMessages, anthropic.NewAssistantMessage(block))
		} else {
			apiMessages = append(apiMessages, anthropic.NewUserMessage(block))
		}
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  apiMessages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	return params
}

// Chat sends the conversation and returns the concatenated text reply.
func (c *AnthropicClient) Chat(ctx context.Context, system string, messages []Message) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.Messages.New(ctx, c.params(system, messages))
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}

// ChatStream streams the reply as text deltas. The text channel closes when
// the stream ends; a terminal error, if any, arrives on the error channel.
func (c *AnthropicClient) ChatStream(ctx context.Context, system string, messages []Message) (<-chan string, <-chan error) {
	out := make(chan string)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		streamCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			streamCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		stream := c.client.Messages.NewStreaming(streamCtx, c.params(system, messages))
		defer stream.Close()
		for stream.Next() {
			event := stream.Current()
			switch evt := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				switch delta := evt.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					select {
					case out <- delta.Text:
					case <-streamCtx.Done():
						errc <- streamCtx.Err()
						return
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			errc <- fmt.Errorf("anthropic stream error: %w", err)
		}
	}()
	return out, errc
}

// Summarize condenses texts into one short summary.
func (c *AnthropicClient) Summarize(ctx context.Context, texts []string) (string, error) {
	prompt := "Summarize the following conversation turns:\n\n" + strings.Join(texts, "\n")
	return c.Chat(ctx, summarySystemPrompt, []Message{{Role: models.RoleUser, Content: prompt}})
}
