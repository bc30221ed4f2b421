package llm

import "context"

// Disabled is the no-model client. Every call fails with ErrUnavailable so
// callers can fall back without special-casing configuration.
type Disabled struct{}

// Chat always fails with ErrUnavailable.
func (Disabled) Chat(ctx context.Context, system string, messages []Message) (string, error) {
	return "", ErrUnavailable
}

// ChatStream always fails with ErrUnavailable.
func (Disabled) ChatStream(ctx context.Context, system string, messages []Message) (<-chan string, <-chan error) {
	ch := make(chan string)
	close(ch)
	errc := make(chan error, 1)
	errc <- ErrUnavailable
	close(errc)
	return ch, errc
}

// Summarize always fails with ErrUnavailable.
func (Disabled) Summarize(ctx context.Context, texts []string) (string, error) {
	return "", ErrUnavailable
}

// Available reports false.
func (Disabled) Available() bool { return false }
