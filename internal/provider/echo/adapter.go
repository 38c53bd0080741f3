// Package echo provides an offline transport that echoes the conversation back.
// It implements domain.Transport without making external API calls, so the UI
// can be exercised locally without a credential.
package echo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/davidbz/codeassist/internal/domain"
	"github.com/davidbz/codeassist/internal/observability"
)

const (
	providerName = "echo"
	chunkDelay   = 10 * time.Millisecond
)

// Provider implements the domain.Transport interface for echo testing.
type Provider struct {
	name       string
	chunkDelay time.Duration
}

// NewProvider creates a new echo provider.
// No configuration is required as this provider operates entirely in-memory.
func NewProvider() *Provider {
	return NewProviderWithDelay(chunkDelay)
}

// NewProviderWithDelay creates an echo provider pausing delay between streamed words.
func NewProviderWithDelay(delay time.Duration) *Provider {
	return &Provider{
		name:       providerName,
		chunkDelay: delay,
	}
}

// Send returns the echoed conversation in one piece.
func (p *Provider) Send(ctx context.Context, req *domain.CompletionRequest) (string, error) {
	if req == nil {
		return "", domain.NewInvalidRequestError(errors.New("request cannot be nil"))
	}

	logger := observability.FromContext(ctx)
	logger.Debug("echoing request")

	content := buildEchoContent(req.Messages)

	logger.Debug("echo completed", observability.Int("words", countWords(content)))
	return content, nil
}

// SendStreamed streams the echoed conversation word by word and returns the
// reassembled text.
func (p *Provider) SendStreamed(ctx context.Context, req *domain.CompletionRequest) (string, error) {
	if req == nil {
		return "", domain.NewInvalidRequestError(errors.New("request cannot be nil"))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	return domain.CollectStream(ctx, p.stream(ctx, req))
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

func (p *Provider) stream(ctx context.Context, req *domain.CompletionRequest) <-chan domain.StreamChunk {
	observability.FromContext(ctx).Debug("streaming echo request")

	words := strings.Fields(buildEchoContent(req.Messages))
	chunks := make(chan domain.StreamChunk)

	go func() {
		defer close(chunks)

		for i, word := range words {
			delta := word
			if i < len(words)-1 {
				delta += " "
			}

			select {
			case <-ctx.Done():
				return
			case chunks <- domain.StreamChunk{Delta: delta, Done: false, Error: nil}:
			}

			if p.chunkDelay > 0 {
				time.Sleep(p.chunkDelay)
			}
		}

		select {
		case chunks <- domain.StreamChunk{Delta: "", Done: true, Error: nil}:
		case <-ctx.Done():
		}
	}()

	return chunks
}

// buildEchoContent constructs the echo response from request messages.
func buildEchoContent(messages []domain.Message) string {
	var builder strings.Builder
	for _, msg := range messages {
		builder.WriteString(fmt.Sprintf("[%s]: %s\n", msg.Role, msg.Content))
	}
	return builder.String()
}

func countWords(content string) int {
	return len(strings.Fields(content))
}
