package domain

import (
	"context"
	"time"
)

// Transport issues exactly one chat-completion call against a provider.
type Transport interface {
	// Send performs a buffered call and returns the assembled content.
	Send(ctx context.Context, req *CompletionRequest) (string, error)

	// SendStreamed performs a streaming call and returns the ordered
	// concatenation of all fragments once the stream ends.
	SendStreamed(ctx context.Context, req *CompletionRequest) (string, error)

	// Name returns the provider identifier.
	Name() string
}

// TransportRegistry manages available transports.
type TransportRegistry interface {
	// Register adds a transport to the registry.
	Register(ctx context.Context, transport Transport) error

	// Get retrieves a transport by name.
	Get(ctx context.Context, name string) (Transport, error)

	// List returns all registered transport names.
	List(ctx context.Context) ([]string, error)
}

// ResponseCache stores final completion text keyed by request fingerprint.
type ResponseCache interface {
	// Get returns the cached text or ErrCacheMiss.
	Get(ctx context.Context, key string) (string, error)

	// Set stores text under key for ttl.
	Set(ctx context.Context, key string, text string, ttl time.Duration) error
}

// EventPublisher publishes events for observability.
type EventPublisher interface {
	// Publish publishes an event with the given type and data.
	Publish(ctx context.Context, eventType string, data map[string]interface{})
}
