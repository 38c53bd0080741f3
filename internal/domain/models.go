package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a single chat-completion call. Build it with
// NewCompletionRequest and treat it as read-only afterwards.
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream"`
}

// Settings are the generation parameters chosen in the UI.
type Settings struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Stream      bool    `json:"stream"`
}

// NewCompletionRequest validates settings and returns a request owning its own
// copy of messages.
func NewCompletionRequest(messages []Message, settings Settings) (*CompletionRequest, error) {
	if len(messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}

	if settings.Model == "" {
		return nil, errors.New("model cannot be empty")
	}

	if settings.MaxTokens <= 0 {
		return nil, fmt.Errorf("max tokens must be positive, got %d", settings.MaxTokens)
	}

	if settings.Temperature < 0 || settings.Temperature > 1 {
		return nil, fmt.Errorf("temperature must be within [0,1], got %g", settings.Temperature)
	}

	msgs := make([]Message, len(messages))
	copy(msgs, messages)

	return &CompletionRequest{
		Messages:    msgs,
		Model:       settings.Model,
		MaxTokens:   settings.MaxTokens,
		Temperature: settings.Temperature,
		Stream:      settings.Stream,
	}, nil
}

// StreamChunk represents a single streaming response fragment.
type StreamChunk struct {
	Delta string `json:"delta"`
	Done  bool   `json:"done"`
	Error error  `json:"error,omitempty"`
}

// RetryPolicy bounds how often and how patiently a request is retried.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Validate checks the policy invariants.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.BaseDelay < 0 {
		return fmt.Errorf("base delay cannot be negative, got %s", p.BaseDelay)
	}
	return nil
}

// maxBackoff is the saturated wait once base*2^attempt no longer fits a Duration.
const maxBackoff = time.Duration(math.MaxInt64)

// Backoff returns the wait inserted after the given zero-indexed failed attempt.
// The result never decreases as attempt grows; it saturates at maxBackoff.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if p.BaseDelay <= 0 {
		return p.BaseDelay
	}
	if attempt >= 63 || p.BaseDelay > maxBackoff>>uint(attempt) {
		return maxBackoff
	}
	return p.BaseDelay << uint(attempt)
}

// HistoryRecord is one entry of the session history shown in the UI.
type HistoryRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Input     string    `json:"input"`
	Output    string    `json:"output"`
}
