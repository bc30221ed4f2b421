package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/oboeru/internal/config"
)

func TestDisabled(t *testing.T) {
	var c Client = Disabled{}
	ctx := context.Background()

	if c.Available() {
		t.Error("disabled client reports available")
	}
	if _, err := c.Chat(ctx, "", nil); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Chat error = %v, want ErrUnavailable", err)
	}
	if _, err := c.Summarize(ctx, []string{"a"}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Summarize error = %v, want ErrUnavailable", err)
	}

	out, errc := c.ChatStream(ctx, "", nil)
	for range out {
		t.Error("disabled stream produced output")
	}
	if err := <-errc; !errors.Is(err, ErrUnavailable) {
		t.Errorf("stream error = %v, want ErrUnavailable", err)
	}
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.LLMConfig
		wantErr   bool
		available bool
	}{
		{name: "none", cfg: config.LLMConfig{Provider: "none"}, available: false},
		{name: "empty defaults to none", cfg: config.LLMConfig{}, available: false},
		{name: "anthropic without key", cfg: config.LLMConfig{Provider: "anthropic"}, wantErr: true},
		{
			name:      "anthropic",
			cfg:       config.LLMConfig{Provider: "anthropic", APIKey: "test-key", Model: "claude-sonnet-4-20250514"},
			available: true,
		},
		{name: "unknown", cfg: config.LLMConfig{Provider: "openai"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(&tt.cfg, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewClient failed: %v", err)
			}
			if c.Available() != tt.available {
				t.Errorf("Available() = %v, want %v", c.Available(), tt.available)
			}
		})
	}
}
