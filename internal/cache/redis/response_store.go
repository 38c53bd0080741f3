package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/davidbz/codeassist/internal/domain"
	"github.com/davidbz/codeassist/internal/observability"
)

// Config contains the response cache settings.
type Config struct {
	Enabled    bool          `env:"CACHE_ENABLED"           envDefault:"false"`
	Addr       string        `env:"CACHE_REDIS_ADDR"        envDefault:"localhost:6379"`
	Password   string        `env:"CACHE_REDIS_PASSWORD"`
	DB         int           `env:"CACHE_REDIS_DB"          envDefault:"0"`
	TTL        time.Duration `env:"CACHE_TTL"               envDefault:"1h"`
	KeyPrefix  string        `env:"CACHE_KEY_PREFIX"        envDefault:"codeassist:"`
	MaxRetries int           `env:"CACHE_REDIS_MAX_RETRIES" envDefault:"1"`
}

// NewClient creates a redis client from config. It does not connect.
func NewClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		MaxRetries: cfg.MaxRetries,
	})
}

const startupPingTimeout = 5 * time.Second

// NewResponseCache builds the configured cache (DI constructor). It returns a nil
// cache when caching is disabled. An unreachable server is logged and the store
// is still returned, since cache failures only degrade to provider calls.
func NewResponseCache(cfg *Config) (domain.ResponseCache, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	store, err := NewResponseStore(NewClient(*cfg), cfg.KeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to create response cache: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupPingTimeout)
	defer cancel()

	logger := observability.FromContext(ctx)
	if pingErr := store.Ping(ctx); pingErr != nil {
		logger.Warn("response cache unreachable, continuing",
			observability.String("addr", cfg.Addr),
			observability.Error(pingErr))
	} else {
		logger.Info("response cache connected", observability.String("addr", cfg.Addr))
	}

	return store, nil
}

// ResponseStore implements domain.ResponseCache with plain redis strings.
type ResponseStore struct {
	client *redis.Client
	prefix string
}

// NewResponseStore creates a new redis-backed response cache.
func NewResponseStore(client *redis.Client, prefix string) (*ResponseStore, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}

	return &ResponseStore{
		client: client,
		prefix: prefix,
	}, nil
}

// Get returns the cached completion text or domain.ErrCacheMiss.
func (s *ResponseStore) Get(ctx context.Context, key string) (string, error) {
	text, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("failed to read cached response: %w", err)
	}

	observability.FromContext(ctx).Debug("cached response loaded",
		observability.String("cache_key", key),
		observability.Int("data_size", len(text)))

	return text, nil
}

// Set stores text under key with the given ttl.
func (s *ResponseStore) Set(ctx context.Context, key string, text string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive, got %s", ttl)
	}

	if err := s.client.Set(ctx, s.key(key), text, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store cached response: %w", err)
	}

	return nil
}

// Ping checks connectivity.
func (s *ResponseStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (s *ResponseStore) key(key string) string {
	return s.prefix + key
}
