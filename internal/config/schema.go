// Package config provides configuration management for commitgen.
package config

import (
	"strings"
	"time"

	"github.com/relicta-tech/commitgen/internal/domain/changes"
	"github.com/relicta-tech/commitgen/internal/infrastructure/ai"
	"github.com/relicta-tech/commitgen/internal/infrastructure/cache"
	"github.com/relicta-tech/commitgen/internal/pipeline"
)

// Config is the root configuration.
type Config struct {
	// AI configures the optional summary generator.
	AI AIConfig `mapstructure:"ai" json:"ai" yaml:"ai" toml:"ai"`
	// Commit configures message rendering.
	Commit CommitConfig `mapstructure:"commit" json:"commit" yaml:"commit" toml:"commit"`
	// Cache configures result caching.
	Cache CacheConfig `mapstructure:"cache" json:"cache" yaml:"cache" toml:"cache"`
	// Output configures reporting and logging.
	Output OutputConfig `mapstructure:"output" json:"output" yaml:"output" toml:"output"`
}

// AIConfig configures summary generation.
type AIConfig struct {
	// Provider is disabled, local or cloud.
	Provider string `mapstructure:"provider" json:"provider" yaml:"provider" toml:"provider"`
	// CloudProvider selects the cloud backend (openai, anthropic, gemini).
	CloudProvider string `mapstructure:"cloud_provider" json:"cloud_provider" yaml:"cloud_provider" toml:"cloud_provider"`
	// Model overrides the backend's default model.
	Model string `mapstructure:"model" json:"model,omitempty" yaml:"model,omitempty" toml:"model,omitempty"`
	// BaseURL overrides the backend endpoint.
	BaseURL string `mapstructure:"base_url" json:"base_url,omitempty" yaml:"base_url,omitempty" toml:"base_url,omitempty"`
	// APIKey for cloud backends. Supports ${VAR} expansion.
	APIKey string `mapstructure:"api_key" json:"-" yaml:"api_key,omitempty" toml:"api_key,omitempty"`
	// Timeout bounds one generation call.
	Timeout time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout" toml:"timeout"`
	// MaxTokens bounds the reply.
	MaxTokens int `mapstructure:"max_tokens" json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	// Temperature controls randomness (0.0-2.0).
	Temperature float64 `mapstructure:"temperature" json:"temperature" yaml:"temperature" toml:"temperature"`
	// RetryAttempts is the number of retries after a transient failure.
	RetryAttempts int `mapstructure:"retry_attempts" json:"retry_attempts" yaml:"retry_attempts" toml:"retry_attempts"`
	// RateLimitRPM limits requests per minute (0 = unlimited).
	RateLimitRPM int `mapstructure:"rate_limit_rpm" json:"rate_limit_rpm" yaml:"rate_limit_rpm" toml:"rate_limit_rpm"`
}

// CommitConfig configures rendering.
type CommitConfig struct {
	// MaxHeaderLength bounds the header line.
	MaxHeaderLength int `mapstructure:"max_header_length" json:"max_header_length" yaml:"max_header_length" toml:"max_header_length"`
	// IncludeBody adds a per-file change list to the message.
	IncludeBody bool `mapstructure:"include_body" json:"include_body" yaml:"include_body" toml:"include_body"`
}

// CacheConfig configures result caching.
type CacheConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled" yaml:"enabled" toml:"enabled"`
	// Backend is memory or sqlite.
	Backend string `mapstructure:"backend" json:"backend" yaml:"backend" toml:"backend"`
	// Path is the sqlite database file.
	Path string        `mapstructure:"path" json:"path,omitempty" yaml:"path,omitempty" toml:"path,omitempty"`
	TTL  time.Duration `mapstructure:"ttl" json:"ttl" yaml:"ttl" toml:"ttl"`
}

// OutputConfig configures reporting.
type OutputConfig struct {
	// Format is text, json or yaml.
	Format   string `mapstructure:"format" json:"format" yaml:"format" toml:"format"`
	Color    bool   `mapstructure:"color" json:"color" yaml:"color" toml:"color"`
	Verbose  bool   `mapstructure:"verbose" json:"verbose" yaml:"verbose" toml:"verbose"`
	LogLevel string `mapstructure:"log_level" json:"log_level" yaml:"log_level" toml:"log_level"`
	// LogFile, when set, receives log output instead of stderr.
	LogFile string `mapstructure:"log_file" json:"log_file,omitempty" yaml:"log_file,omitempty" toml:"log_file,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		AI: AIConfig{
			Provider:      string(ai.ProviderDisabled),
			CloudProvider: ai.CloudOpenAI,
			Timeout:       5 * time.Second,
			MaxTokens:     64,
			Temperature:   0.2,
			RetryAttempts: 1,
			RateLimitRPM:  30,
		},
		Commit: CommitConfig{
			MaxHeaderLength: changes.DefaultMaxHeaderLength,
		},
		Cache: CacheConfig{
			Enabled: false,
			Backend: cache.BackendMemory,
			TTL:     cache.DefaultTTL,
		},
		Output: OutputConfig{
			Format:   "text",
			Color:    true,
			LogLevel: "info",
		},
	}
}

// PipelineConfig maps the configuration onto the pipeline's options.
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		Provider:        ai.Provider(c.AI.Provider),
		Timeout:         c.AI.Timeout,
		MaxHeaderLength: c.Commit.MaxHeaderLength,
		IncludeBody:     c.Commit.IncludeBody,
	}
}

// GeneratorOptions maps the AI section onto generator options.
func (c *Config) GeneratorOptions() []ai.ServiceOption {
	baseURL := c.AI.BaseURL
	// OLLAMA_HOST conventionally omits the OpenAI-compatible path.
	if ai.Provider(c.AI.Provider) == ai.ProviderLocal && baseURL != "" && !strings.HasSuffix(strings.TrimRight(baseURL, "/"), "/v1") {
		baseURL = strings.TrimRight(baseURL, "/") + "/v1"
	}
	return []ai.ServiceOption{
		ai.WithProvider(ai.Provider(c.AI.Provider)),
		ai.WithCloudProvider(c.AI.CloudProvider),
		ai.WithModel(c.AI.Model),
		ai.WithBaseURL(baseURL),
		ai.WithAPIKey(c.AI.APIKey),
		ai.WithTimeout(c.AI.Timeout),
		ai.WithMaxTokens(c.AI.MaxTokens),
		ai.WithTemperature(c.AI.Temperature),
		ai.WithRetryAttempts(c.AI.RetryAttempts),
		ai.WithRateLimit(c.AI.RateLimitRPM),
	}
}

// CacheOptions maps the cache section onto the cache backend config.
func (c *Config) CacheOptions() cache.Config {
	return cache.Config{
		Backend: c.Cache.Backend,
		Path:    c.Cache.Path,
		TTL:     c.Cache.TTL,
	}
}

// ConfigFileNames to search for, in order.
var ConfigFileNames = []string{
	".commitgen",
	"commitgen.config",
}

// ConfigFileExtensions supported by viper.
var ConfigFileExtensions = []string{
	"yaml",
	"yml",
	"toml",
	"json",
}
