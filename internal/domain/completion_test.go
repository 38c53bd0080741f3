package domain_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/codeassist/internal/domain"
)

// mockRegistry is a mock implementation of TransportRegistry for testing.
type mockRegistry struct {
	transports map[string]domain.Transport
}

func newMockRegistry(transports ...domain.Transport) *mockRegistry {
	m := &mockRegistry{transports: make(map[string]domain.Transport)}
	for _, transport := range transports {
		m.transports[transport.Name()] = transport
	}
	return m
}

func (m *mockRegistry) Register(_ context.Context, transport domain.Transport) error {
	m.transports[transport.Name()] = transport
	return nil
}

func (m *mockRegistry) Get(_ context.Context, name string) (domain.Transport, error) {
	transport, exists := m.transports[name]
	if !exists {
		return nil, fmt.Errorf("transport %s not found", name)
	}
	return transport, nil
}

func (m *mockRegistry) List(_ context.Context) ([]string, error) {
	names := make([]string, 0, len(m.transports))
	for name := range m.transports {
		names = append(names, name)
	}
	return names, nil
}

// mockCache is an in-memory ResponseCache.
type mockCache struct {
	mu      sync.Mutex
	entries map[string]string
	getErr  error
	sets    int
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string]string)}
}

func (m *mockCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	text, ok := m.entries[key]
	if !ok {
		return "", domain.ErrCacheMiss
	}
	return text, nil
}

func (m *mockCache) Set(_ context.Context, key string, text string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = text
	m.sets++
	return nil
}

// mockPublisher records published events.
type mockPublisher struct {
	mu     sync.Mutex
	events []string
	data   []map[string]interface{}
}

func (m *mockPublisher) Publish(_ context.Context, eventType string, data map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, eventType)
	m.data = append(m.data, data)
}

func defaultSettings(stream bool) domain.Settings {
	return domain.Settings{Model: "gpt-4o-mini", MaxTokens: 1000, Temperature: 0.7, Stream: stream}
}

func newService(
	registry domain.TransportRegistry,
	cache domain.ResponseCache,
	events domain.EventPublisher,
	sleeper *recordingSleep,
) *domain.CompletionService {
	return domain.NewCompletionService(
		registry,
		domain.NewRetryCoordinatorWithSleep(sleeper.sleep),
		cache,
		events,
		domain.CompletionServiceConfig{
			Provider: "mock",
			Policy:   domain.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second},
			CacheTTL: time.Hour,
		},
	)
}

func TestCompletionService_Request(t *testing.T) {
	t.Run("should build conversation and return completion", func(t *testing.T) {
		var captured *domain.CompletionRequest
		transport := &mockTransport{
			sendStreamedFunc: func(_ context.Context, req *domain.CompletionRequest) (string, error) {
				captured = req
				return "It declares a constant.", nil
			},
		}
		service := newService(newMockRegistry(transport), nil, nil, &recordingSleep{})

		text, err := service.Request(context.Background(), domain.ActionExplain,
			"what does this do?", "const x = 1;", defaultSettings(true))

		require.NoError(t, err)
		require.Equal(t, "It declares a constant.", text)
		require.NotNil(t, captured)
		require.Len(t, captured.Messages, 2)
		require.Equal(t, domain.RoleSystem, captured.Messages[0].Role)
		require.Equal(t, domain.SystemPrompt(domain.ActionExplain), captured.Messages[0].Content)
		require.Equal(t, domain.RoleUser, captured.Messages[1].Role)
		require.Equal(t,
			"Code:\n```typescript\nconst x = 1;\n```\n\nRequest: what does this do?",
			captured.Messages[1].Content)
		require.Equal(t, "gpt-4o-mini", captured.Model)
		require.Equal(t, 1000, captured.MaxTokens)
		require.InDelta(t, 0.7, captured.Temperature, 1e-9)
		require.True(t, captured.Stream)
	})

	t.Run("should fall back to completion template for unknown action", func(t *testing.T) {
		var systemPrompt string
		transport := &mockTransport{
			sendFunc: func(_ context.Context, req *domain.CompletionRequest) (string, error) {
				systemPrompt = req.Messages[0].Content
				return "done", nil
			},
		}
		service := newService(newMockRegistry(transport), nil, nil, &recordingSleep{})

		_, err := service.Request(context.Background(), domain.Action("frobnicate"),
			"help", "let y;", defaultSettings(false))

		require.NoError(t, err)
		require.Equal(t, domain.SystemPrompt(domain.ActionComplete), systemPrompt)
	})

	t.Run("should fail fast when transport is not configured", func(t *testing.T) {
		transport := &mockTransport{name: "openai"}
		service := newService(newMockRegistry(transport), nil, nil, &recordingSleep{})

		text, err := service.Request(context.Background(), domain.ActionDebug,
			"why?", "throw 1", defaultSettings(false))

		require.Error(t, err)
		require.Empty(t, text)
		require.ErrorIs(t, err, domain.ErrNotConfigured)
		require.Equal(t, domain.KindNotConfigured, domain.KindOf(err))
		require.Equal(t, 0, transport.calls())
	})

	t.Run("should fail fast when registry is nil", func(t *testing.T) {
		service := newService(nil, nil, nil, &recordingSleep{})

		_, err := service.Request(context.Background(), domain.ActionDebug,
			"why?", "throw 1", defaultSettings(false))

		require.ErrorIs(t, err, domain.ErrNotConfigured)
	})

	t.Run("should reject invalid settings without calling transport", func(t *testing.T) {
		transport := &mockTransport{}
		service := newService(newMockRegistry(transport), nil, nil, &recordingSleep{})

		settings := defaultSettings(false)
		settings.Temperature = 1.5

		_, err := service.Request(context.Background(), domain.ActionRefactor, "clean up", "var a", settings)

		require.ErrorIs(t, err, domain.ErrFatal)
		require.ErrorIs(t, err, domain.ErrInvalidRequest)
		require.Contains(t, err.Error(), "invalid settings")
		require.Equal(t, 0, transport.calls())
	})

	t.Run("should surface retries exhausted", func(t *testing.T) {
		sleeper := &recordingSleep{}
		transport := &mockTransport{
			sendFunc: func(context.Context, *domain.CompletionRequest) (string, error) {
				return "", rateLimited()
			},
		}
		service := newService(newMockRegistry(transport), nil, nil, sleeper)

		_, err := service.Request(context.Background(), domain.ActionComplete, "finish", "function f(", defaultSettings(false))

		require.ErrorIs(t, err, domain.ErrRetriesExhausted)
		require.Contains(t, err.Error(), "completion failed")
		require.Equal(t, 3, transport.calls())
		require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.delays)
	})

	t.Run("should serve buffered requests from cache", func(t *testing.T) {
		transport := &mockTransport{}
		cache := newMockCache()
		service := newService(newMockRegistry(transport), cache, nil, &recordingSleep{})
		ctx := context.Background()

		first, err := service.Request(ctx, domain.ActionExplain, "explain", "let z = 2;", defaultSettings(false))
		require.NoError(t, err)

		second, err := service.Request(ctx, domain.ActionExplain, "explain", "let z = 2;", defaultSettings(false))
		require.NoError(t, err)

		require.Equal(t, first, second)
		require.Equal(t, 1, transport.calls())
		require.Equal(t, 1, cache.sets)
	})

	t.Run("should bypass cache for streamed requests", func(t *testing.T) {
		transport := &mockTransport{}
		cache := newMockCache()
		service := newService(newMockRegistry(transport), cache, nil, &recordingSleep{})
		ctx := context.Background()

		for i := 0; i < 2; i++ {
			_, err := service.Request(ctx, domain.ActionExplain, "explain", "let z = 2;", defaultSettings(true))
			require.NoError(t, err)
		}

		require.Equal(t, 2, transport.calls())
		require.Equal(t, 0, cache.sets)
	})

	t.Run("should continue when cache read fails", func(t *testing.T) {
		transport := &mockTransport{}
		cache := newMockCache()
		cache.getErr = errors.New("connection refused")
		service := newService(newMockRegistry(transport), cache, nil, &recordingSleep{})

		text, err := service.Request(context.Background(), domain.ActionExplain, "explain", "x", defaultSettings(false))

		require.NoError(t, err)
		require.Equal(t, "buffered response", text)
		require.Equal(t, 1, transport.calls())
	})

	t.Run("should publish completion events", func(t *testing.T) {
		events := &mockPublisher{}
		failing := &mockTransport{
			sendFunc: func(context.Context, *domain.CompletionRequest) (string, error) {
				return "", fatal()
			},
		}
		service := newService(newMockRegistry(failing), nil, events, &recordingSleep{})
		ctx := context.Background()

		_, err := service.Request(ctx, domain.ActionDebug, "why", "x", defaultSettings(false))
		require.Error(t, err)

		require.Equal(t, []string{"assist.failed"}, events.events)
		require.Equal(t, "debug", events.data[0]["action"])
		require.Equal(t, "fatal", events.data[0]["kind"])
	})
}
