// Package openai provides a transport for the OpenAI chat-completion API using
// the official SDK. It implements domain.Transport: one call per method, no
// retries, and errors classified into the domain taxonomy so the retry
// coordinator can decide what to do with them.
package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/davidbz/codeassist/internal/domain"
	"github.com/davidbz/codeassist/internal/observability"
)

const providerName = "openai"

// Provider implements the domain.Transport interface for OpenAI.
type Provider struct {
	client  openai.Client
	limiter *requestLimiter
	name    string
}

// NewProvider creates a new OpenAI provider.
func NewProvider(config Config) (*Provider, error) {
	if config.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
	}

	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(config.Timeout)*time.Second))
	}

	return &Provider{
		client:  openai.NewClient(opts...),
		limiter: newRequestLimiter(config.RequestsPerMinute),
		name:    providerName,
	}, nil
}

// Send performs a buffered completion call and returns the first choice's content.
func (p *Provider) Send(ctx context.Context, req *domain.CompletionRequest) (string, error) {
	if req == nil {
		return "", domain.NewInvalidRequestError(errors.New("request cannot be nil"))
	}

	if err := p.wait(ctx); err != nil {
		return "", err
	}

	logger := observability.FromContext(ctx)
	logger.Debug("calling OpenAI API")

	resp, err := p.client.Chat.Completions.New(ctx, p.toSDKParams(req))
	if err != nil {
		logger.Debug("OpenAI API call failed", observability.Error(err))
		return "", classify(fmt.Errorf("OpenAI API call failed: %w", err))
	}

	logger.Debug("OpenAI API call succeeded",
		observability.Int("prompt_tokens", int(resp.Usage.PromptTokens)),
		observability.Int("completion_tokens", int(resp.Usage.CompletionTokens)),
	)

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// SendStreamed performs a streaming completion call and returns the fragments
// concatenated in arrival order once the stream ends.
func (p *Provider) SendStreamed(ctx context.Context, req *domain.CompletionRequest) (string, error) {
	if req == nil {
		return "", domain.NewInvalidRequestError(errors.New("request cannot be nil"))
	}

	if err := p.wait(ctx); err != nil {
		return "", err
	}

	// Cancelling on return releases the reader goroutine if we stop early.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	return domain.CollectStream(ctx, p.stream(ctx, req))
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// stream converts the SDK stream into ordered domain chunks.
func (p *Provider) stream(ctx context.Context, req *domain.CompletionRequest) <-chan domain.StreamChunk {
	logger := observability.FromContext(ctx)
	logger.Debug("calling OpenAI streaming API")

	params := p.toSDKParams(req)
	sdkStream := p.client.Chat.Completions.NewStreaming(ctx, params)

	chunks := make(chan domain.StreamChunk)

	send := func(chunk domain.StreamChunk) bool {
		select {
		case chunks <- chunk:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(chunks)
		defer sdkStream.Close()
		defer logger.Debug("OpenAI stream completed")

		for sdkStream.Next() {
			chunk := sdkStream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}

			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}

			if !send(domain.StreamChunk{Delta: delta, Done: false, Error: nil}) {
				return
			}
		}

		if err := sdkStream.Err(); err != nil {
			send(domain.StreamChunk{
				Delta: "",
				Done:  false,
				Error: classify(fmt.Errorf("OpenAI stream error: %w", err)),
			})
			return
		}

		send(domain.StreamChunk{Delta: "", Done: true, Error: nil})
	}()

	return chunks
}

// wait applies the client-side request budget.
func (p *Provider) wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return domain.NewCompletionError(domain.KindRateLimited, 0, fmt.Errorf("client request budget: %w", err))
	}
	return nil
}

// toSDKParams converts a domain request to SDK ChatCompletionNewParams.
func (p *Provider) toSDKParams(req *domain.CompletionRequest) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    toSDKMessages(req.Messages),
		MaxTokens:   openai.Int(int64(req.MaxTokens)),
		Temperature: openai.Float(req.Temperature),
	}
}

func toSDKMessages(msgs []domain.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, len(msgs))
	for i, msg := range msgs {
		switch msg.Role {
		case domain.RoleSystem:
			out[i] = openai.SystemMessage(msg.Content)
		case domain.RoleAssistant:
			out[i] = openai.AssistantMessage(msg.Content)
		default:
			out[i] = openai.UserMessage(msg.Content)
		}
	}
	return out
}
