package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	rediscache "github.com/davidbz/codeassist/internal/cache/redis"
	"github.com/davidbz/codeassist/internal/config"
	"github.com/davidbz/codeassist/internal/domain"
	"github.com/davidbz/codeassist/internal/httpserver"
	"github.com/davidbz/codeassist/internal/httpserver/middleware"
	"github.com/davidbz/codeassist/internal/observability"
	"github.com/davidbz/codeassist/internal/provider/echo"
	"github.com/davidbz/codeassist/internal/provider/openai"
	"github.com/davidbz/codeassist/internal/provider/registry"
	"github.com/davidbz/codeassist/internal/scheduler"
)

const shutdownTimeout = 15 * time.Second

func main() {
	container := buildContainer()

	err := container.Invoke(func(server *httpserver.Server, executor *scheduler.Executor) error {
		return run(server, executor)
	})
	if err != nil {
		log.Fatalf("Application failed: %v", err)
	}
}

func run(server *httpserver.Server, executor *scheduler.Executor) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return errors.Join(
		server.Shutdown(shutdownCtx),
		executor.Shutdown(shutdownCtx),
	)
}

func buildContainer() *dig.Container {
	container := dig.New()

	// Configuration
	if err := container.Provide(config.Load); err != nil {
		log.Fatalf("Failed to provide config: %v", err)
	}
	if err := container.Provide(config.ParseDependenciesConfig); err != nil {
		log.Fatalf("Failed to provide config dependencies: %v", err)
	}

	// Observability
	if err := container.Provide(observability.InitLogger); err != nil {
		log.Fatalf("Failed to provide logger: %v", err)
	}
	if err := container.Provide(func() domain.EventPublisher {
		return observability.NewEventBus()
	}); err != nil {
		log.Fatalf("Failed to provide event bus: %v", err)
	}

	// Transport Registry
	if err := container.Provide(func() domain.TransportRegistry {
		return registry.NewRegistry()
	}); err != nil {
		log.Fatalf("Failed to provide registry: %v", err)
	}

	// Register transports with registry (invoked for side effects)
	if err := container.Invoke(registerTransports); err != nil {
		log.Fatalf("Failed to register transports: %v", err)
	}

	// Response cache, nil when disabled
	if err := container.Provide(rediscache.NewResponseCache); err != nil {
		log.Fatalf("Failed to provide response cache: %v", err)
	}

	// Domain Services
	if err := container.Provide(domain.NewRetryCoordinator); err != nil {
		log.Fatalf("Failed to provide retry coordinator: %v", err)
	}
	if err := container.Provide(func(
		assist *config.AssistConfig,
		retry *config.RetryConfig,
		cache *rediscache.Config,
	) domain.CompletionServiceConfig {
		svcConfig := domain.CompletionServiceConfig{
			Provider: assist.Provider,
			Policy:   retry.Policy(),
			CacheTTL: 0,
		}
		if cache.Enabled {
			svcConfig.CacheTTL = cache.TTL
		}
		return svcConfig
	}); err != nil {
		log.Fatalf("Failed to provide completion service config: %v", err)
	}
	if err := container.Provide(domain.NewCompletionService); err != nil {
		log.Fatalf("Failed to provide completion service: %v", err)
	}
	if err := container.Provide(func(assist *config.AssistConfig) *domain.HistoryLog {
		return domain.NewHistoryLog(assist.HistoryLimit)
	}); err != nil {
		log.Fatalf("Failed to provide history log: %v", err)
	}
	if err := container.Provide(scheduler.NewExecutor); err != nil {
		log.Fatalf("Failed to provide executor: %v", err)
	}

	// HTTP Layer
	if err := container.Provide(middleware.BuildMiddlewareChain); err != nil {
		log.Fatalf("Failed to provide middleware chain: %v", err)
	}
	if err := container.Provide(httpserver.NewHandler); err != nil {
		log.Fatalf("Failed to provide HTTP handler: %v", err)
	}
	if err := container.Provide(httpserver.NewServer); err != nil {
		log.Fatalf("Failed to provide HTTP server: %v", err)
	}

	return container
}

// registerTransports registers the offline echo transport and, when a key is
// configured, the OpenAI transport. Without a key the OpenAI transport is
// absent and requests routed to it fail with domain.ErrNotConfigured.
// The logger parameter forces logger initialization before registration.
func registerTransports(reg domain.TransportRegistry, cfg *openai.Config, _ *zap.Logger) error {
	ctx := context.Background()
	logger := observability.FromContext(ctx)

	if err := reg.Register(ctx, echo.NewProvider()); err != nil {
		return fmt.Errorf("failed to register echo transport: %w", err)
	}

	if cfg.APIKey == "" {
		logger.Warn("OPENAI_API_KEY not set, openai transport disabled")
		return nil
	}

	provider, err := openai.NewProvider(*cfg)
	if err != nil {
		return fmt.Errorf("failed to create OpenAI transport: %w", err)
	}

	if err := reg.Register(ctx, provider); err != nil {
		return fmt.Errorf("failed to register OpenAI transport: %w", err)
	}

	return nil
}
