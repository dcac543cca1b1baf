// Package ai provides language-model backed description generation.
package ai

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	rperrors "github.com/relicta-tech/commitgen/internal/errors"
)

// Generator produces a short text completion for a prompt.
type Generator interface {
	// Generate returns the model's reply to prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// Name identifies the backend, e.g. "openai/gpt-4o-mini".
	Name() string
}

// Provider selects where generation runs.
type Provider string

const (
	// ProviderDisabled turns generation off; summaries use templates.
	ProviderDisabled Provider = "disabled"
	// ProviderLocal uses an Ollama server through its OpenAI-compatible API.
	ProviderLocal Provider = "local"
	// ProviderCloud uses a hosted API selected by CloudProvider.
	ProviderCloud Provider = "cloud"
)

// Valid reports whether p is a known provider.
func (p Provider) Valid() bool {
	switch p {
	case ProviderDisabled, ProviderLocal, ProviderCloud:
		return true
	}
	return false
}

// Hosted APIs usable with ProviderCloud.
const (
	CloudOpenAI    = "openai"
	CloudAnthropic = "anthropic"
	CloudGemini    = "gemini"
)

// ServiceConfig configures a Generator.
type ServiceConfig struct {
	// Provider is local, cloud or disabled.
	Provider Provider
	// CloudProvider is openai, anthropic or gemini when Provider is cloud.
	CloudProvider string
	// APIKey is the key for the hosted API.
	APIKey string
	// BaseURL overrides the API endpoint.
	BaseURL string
	// Model is the model name; empty selects the backend default.
	Model string
	// MaxTokens bounds the reply.
	MaxTokens int
	// Temperature controls randomness (0.0-2.0).
	Temperature float64
	// Timeout bounds a single HTTP exchange.
	Timeout time.Duration
	// RetryAttempts is the number of retries after the first attempt fails.
	RetryAttempts int
	// RateLimitRPM limits requests per minute (0 = no limit).
	RateLimitRPM int
}

// DefaultServiceConfig returns the default configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Provider:      ProviderDisabled,
		CloudProvider: CloudOpenAI,
		MaxTokens:     64,
		Temperature:   0.2,
		Timeout:       5 * time.Second,
		RetryAttempts: 1,
		RateLimitRPM:  30,
	}
}

// ServiceOption configures the AI service.
type ServiceOption func(*ServiceConfig)

// WithProvider sets the provider.
func WithProvider(provider Provider) ServiceOption {
	return func(cfg *ServiceConfig) {
		cfg.Provider = provider
	}
}

// WithCloudProvider sets the hosted API used by ProviderCloud.
func WithCloudProvider(name string) ServiceOption {
	return func(cfg *ServiceConfig) {
		cfg.CloudProvider = strings.ToLower(name)
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) ServiceOption {
	return func(cfg *ServiceConfig) {
		cfg.APIKey = key
	}
}

// WithBaseURL sets the base URL.
func WithBaseURL(url string) ServiceOption {
	return func(cfg *ServiceConfig) {
		cfg.BaseURL = url
	}
}

// WithModel sets the model.
func WithModel(model string) ServiceOption {
	return func(cfg *ServiceConfig) {
		cfg.Model = model
	}
}

// WithMaxTokens sets the maximum tokens.
func WithMaxTokens(tokens int) ServiceOption {
	return func(cfg *ServiceConfig) {
		cfg.MaxTokens = tokens
	}
}

// WithTemperature sets the temperature.
func WithTemperature(temp float64) ServiceOption {
	return func(cfg *ServiceConfig) {
		cfg.Temperature = temp
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ServiceOption {
	return func(cfg *ServiceConfig) {
		cfg.Timeout = timeout
	}
}

// WithRetryAttempts sets the retry attempts.
func WithRetryAttempts(attempts int) ServiceOption {
	return func(cfg *ServiceConfig) {
		cfg.RetryAttempts = attempts
	}
}

// WithRateLimit sets the rate limit in requests per minute.
func WithRateLimit(rpm int) ServiceOption {
	return func(cfg *ServiceConfig) {
		cfg.RateLimitRPM = rpm
	}
}

// NewGenerator creates the Generator selected by the configuration. A
// disabled provider, or a cloud provider without an API key, yields a
// generator that always reports ErrUnavailable.
func NewGenerator(opts ...ServiceOption) (Generator, error) {
	cfg := DefaultServiceConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	switch cfg.Provider {
	case ProviderDisabled, "":
		return Disabled(), nil
	case ProviderLocal:
		return NewOllamaGenerator(cfg)
	case ProviderCloud:
		switch cfg.CloudProvider {
		case CloudOpenAI, "":
			return NewOpenAIGenerator(cfg)
		case CloudAnthropic, "claude":
			return NewAnthropicGenerator(cfg)
		case CloudGemini:
			return NewGeminiGenerator(cfg)
		default:
			return nil, rperrors.Config("ai.NewGenerator", fmt.Sprintf("unknown cloud provider %q", cfg.CloudProvider))
		}
	default:
		return nil, rperrors.Config("ai.NewGenerator", fmt.Sprintf("unknown provider %q", cfg.Provider))
	}
}

// ErrUnavailable is returned by a generator that has no backend.
var ErrUnavailable = rperrors.AI("ai.Generate", "generation is disabled")

// Available reports whether g can reach a backend.
func Available(g Generator) bool {
	if g == nil {
		return false
	}
	_, disabled := g.(noopGenerator)
	return !disabled
}

// Close releases resources held by g, such as its rate limiter. Generators
// without resources are left alone.
func Close(g Generator) error {
	if c, ok := g.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Disabled returns a generator that always fails with ErrUnavailable.
func Disabled() Generator {
	return noopGenerator{}
}

type noopGenerator struct{}

func (noopGenerator) Generate(context.Context, string) (string, error) {
	return "", ErrUnavailable
}

func (noopGenerator) Name() string { return string(ProviderDisabled) }
