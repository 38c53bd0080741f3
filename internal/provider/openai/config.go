package openai

// Config contains OpenAI provider configuration.
// Fields map to SDK options:
//   - APIKey: Maps to option.WithAPIKey()
//   - BaseURL: Maps to option.WithBaseURL()
//   - Timeout: Maps to option.WithRequestTimeout() (in seconds)
//
// RequestsPerMinute throttles outbound calls on the client side; 0 disables it.
// SDK retries are always off because retrying belongs to the domain coordinator.
type Config struct {
	APIKey            string `env:"OPENAI_API_KEY"`
	BaseURL           string `env:"OPENAI_BASE_URL"            envDefault:"https://api.openai.com/v1"`
	Timeout           int    `env:"OPENAI_TIMEOUT"             envDefault:"60"`
	RequestsPerMinute int    `env:"OPENAI_REQUESTS_PER_MINUTE" envDefault:"0"`
}
