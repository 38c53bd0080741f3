package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/davidbz/codeassist/internal/observability"
)

// CompletionServiceConfig holds the static settings of a CompletionService.
type CompletionServiceConfig struct {
	// Provider names the registered transport to use.
	Provider string
	Policy   RetryPolicy
	// CacheTTL is how long buffered responses stay cached. Zero disables caching.
	CacheTTL time.Duration
}

// CompletionService turns UI actions into completion requests.
type CompletionService struct {
	registry    TransportRegistry
	coordinator *RetryCoordinator
	cache       ResponseCache
	events      EventPublisher
	config      CompletionServiceConfig
}

// NewCompletionService creates a new completion service (DI constructor).
// cache and events may be nil.
func NewCompletionService(
	registry TransportRegistry,
	coordinator *RetryCoordinator,
	cache ResponseCache,
	events EventPublisher,
	config CompletionServiceConfig,
) *CompletionService {
	return &CompletionService{
		registry:    registry,
		coordinator: coordinator,
		cache:       cache,
		events:      events,
		config:      config,
	}
}

// Request builds the conversation for action and returns the completion text.
func (s *CompletionService) Request(
	ctx context.Context,
	action Action,
	userPrompt string,
	code string,
	settings Settings,
) (string, error) {
	ctx = observability.WithProvider(ctx, s.config.Provider)
	ctx = observability.WithModel(ctx, settings.Model)
	logger := observability.FromContext(ctx)

	transport, err := s.transport(ctx)
	if err != nil {
		logger.Warn("no completion transport configured", observability.Error(err))
		s.publish(ctx, "assist.failed", action, err)
		return "", err
	}

	if !IsKnownAction(action) {
		logger.Warn("unknown action, using completion template",
			observability.String("action", string(action)))
	}

	req, err := NewCompletionRequest(BuildMessages(action, userPrompt, code), settings)
	if err != nil {
		err = NewInvalidRequestError(fmt.Errorf("invalid settings: %w", err))
		s.publish(ctx, "assist.failed", action, err)
		return "", err
	}

	useCache := s.cache != nil && s.config.CacheTTL > 0 && !req.Stream
	key := ""
	if useCache {
		key = CacheKey(req)
		cached, cacheErr := s.cache.Get(ctx, key)
		switch {
		case cacheErr == nil:
			logger.Info("cache HIT - returning cached response",
				observability.String("cache_key", key))
			s.publish(ctx, "assist.completed", action, nil)
			return cached, nil
		case errors.Is(cacheErr, ErrCacheMiss):
			logger.Info("cache MISS - calling provider")
		default:
			logger.Warn("cache get failed, continuing without cache",
				observability.Error(cacheErr))
		}
	}

	started := time.Now()
	text, err := s.coordinator.Execute(ctx, transport, req, s.config.Policy)
	if err != nil {
		logger.Error("completion failed",
			observability.String("action", string(action)),
			observability.Duration("elapsed", time.Since(started)),
			observability.Error(err))
		s.publish(ctx, "assist.failed", action, err)
		return "", fmt.Errorf("completion failed: %w", err)
	}

	logger.Info("completion succeeded",
		observability.String("action", string(action)),
		observability.Bool("stream", req.Stream),
		observability.Int("output_length", len(text)),
		observability.Duration("elapsed", time.Since(started)))

	if useCache {
		if setErr := s.cache.Set(ctx, key, text, s.config.CacheTTL); setErr != nil {
			logger.Warn("failed to store in cache", observability.Error(setErr))
		}
	}

	s.publish(ctx, "assist.completed", action, nil)
	return text, nil
}

func (s *CompletionService) transport(ctx context.Context) (Transport, error) {
	if s.registry == nil || s.config.Provider == "" {
		return nil, NewCompletionError(KindNotConfigured, 0, nil)
	}

	transport, err := s.registry.Get(ctx, s.config.Provider)
	if err != nil {
		return nil, NewCompletionError(KindNotConfigured, 0, err)
	}

	return transport, nil
}

func (s *CompletionService) publish(ctx context.Context, eventType string, action Action, err error) {
	if s.events == nil {
		return
	}

	data := map[string]interface{}{
		"action":   string(action),
		"provider": s.config.Provider,
	}
	if err != nil {
		data["kind"] = KindOf(err).String()
		data["error"] = err.Error()
	}

	s.events.Publish(ctx, eventType, data)
}
