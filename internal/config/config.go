package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/dig"

	rediscache "github.com/davidbz/codeassist/internal/cache/redis"
	"github.com/davidbz/codeassist/internal/domain"
	"github.com/davidbz/codeassist/internal/observability"
	"github.com/davidbz/codeassist/internal/provider/openai"
	"github.com/davidbz/codeassist/internal/scheduler"
)

// Config represents the assistant backend configuration.
type Config struct {
	Server    ServerConfig
	CORS      CORSConfig
	OpenAI    openai.Config
	Retry     RetryConfig
	Assist    AssistConfig
	Scheduler scheduler.Config
	Cache     rediscache.Config
	Log       observability.Config
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int `env:"SERVER_PORT"          envDefault:"8080"`
	ReadTimeout  int `env:"SERVER_READ_TIMEOUT"  envDefault:"30"`
	WriteTimeout int `env:"SERVER_WRITE_TIMEOUT" envDefault:"120"`
}

// CORSConfig contains CORS policy settings.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"   envSeparator:"," envDefault:"GET,POST,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"   envSeparator:"," envDefault:"Content-Type,Authorization,X-Session-Id"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"                  envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE"                            envDefault:"86400"`
}

// RetryConfig controls the retry coordinator.
type RetryConfig struct {
	MaxAttempts int           `env:"RETRY_MAX_ATTEMPTS" envDefault:"3"`
	BaseDelay   time.Duration `env:"RETRY_BASE_DELAY"   envDefault:"1s"`
}

// Policy converts the settings into a domain retry policy.
func (r RetryConfig) Policy() domain.RetryPolicy {
	return domain.RetryPolicy{
		MaxAttempts: r.MaxAttempts,
		BaseDelay:   r.BaseDelay,
	}
}

// AssistConfig contains the completion defaults offered to the UI.
type AssistConfig struct {
	Provider           string   `env:"ASSIST_PROVIDER"            envDefault:"openai"`
	DefaultModel       string   `env:"ASSIST_DEFAULT_MODEL"       envDefault:"gpt-4o-mini"`
	DefaultMaxTokens   int      `env:"ASSIST_DEFAULT_MAX_TOKENS"  envDefault:"1000"`
	DefaultTemperature float64  `env:"ASSIST_DEFAULT_TEMPERATURE" envDefault:"0.7"`
	DefaultStream      bool     `env:"ASSIST_DEFAULT_STREAM"      envDefault:"true"`
	Models             []string `env:"ASSIST_MODELS"              envSeparator:"," envDefault:"gpt-4o-mini,gpt-4,gpt-3.5-turbo"`
	HistoryLimit       int      `env:"ASSIST_HISTORY_LIMIT"       envDefault:"20"`
}

// DefaultSettings returns the generation settings used when the UI omits them.
func (a AssistConfig) DefaultSettings() domain.Settings {
	return domain.Settings{
		Model:       a.DefaultModel,
		MaxTokens:   a.DefaultMaxTokens,
		Temperature: a.DefaultTemperature,
		Stream:      a.DefaultStream,
	}
}

// DepConfig is used for dependency injection with dig.
type DepConfig struct {
	dig.Out
	Server    *ServerConfig
	CORS      *CORSConfig
	OpenAI    *openai.Config
	Retry     *RetryConfig
	Assist    *AssistConfig
	Scheduler *scheduler.Config
	Cache     *rediscache.Config
	Log       *observability.Config
}

// Load loads environment files and parses configuration.
func Load() *Config {
	for _, file := range []string{".env"} {
		_ = godotenv.Load(file)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}

// ParseDependenciesConfig returns pointers to sub-configs for dependency injection.
func ParseDependenciesConfig(cfg *Config) DepConfig {
	return DepConfig{
		dig.Out{},
		&cfg.Server,
		&cfg.CORS,
		&cfg.OpenAI,
		&cfg.Retry,
		&cfg.Assist,
		&cfg.Scheduler,
		&cfg.Cache,
		&cfg.Log,
	}
}
