package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	rperrors "github.com/relicta-tech/commitgen/internal/errors"
	"github.com/relicta-tech/commitgen/internal/infrastructure/ai"
	"github.com/relicta-tech/commitgen/internal/infrastructure/cache"
)

// Header length bounds accepted by Validate.
const (
	MinHeaderLength = 20
	MaxHeaderLength = 200
)

// Accepted values.
var (
	validProviders      = []string{string(ai.ProviderDisabled), string(ai.ProviderLocal), string(ai.ProviderCloud)}
	validCloudProviders = []string{ai.CloudOpenAI, ai.CloudAnthropic, ai.CloudGemini}
	validBackends       = []string{cache.BackendMemory, cache.BackendSQLite}
	validFormats        = []string{"text", "json", "yaml"}
	validLogLevels      = []string{"debug", "info", "warn", "error"}
)

// ValidationError contains all validation errors and warnings.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Errors) > 0 {
		parts = append(parts, fmt.Sprintf("Errors:\n  - %s", strings.Join(e.Errors, "\n  - ")))
	}
	if len(e.Warnings) > 0 {
		parts = append(parts, fmt.Sprintf("Warnings:\n  - %s", strings.Join(e.Warnings, "\n  - ")))
	}
	return fmt.Sprintf("configuration validation failed:\n%s", strings.Join(parts, "\n"))
}

// HasErrors returns true if there are validation errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// HasWarnings returns true if there are validation warnings.
func (e *ValidationError) HasWarnings() bool {
	return len(e.Warnings) > 0
}

// Addf adds a formatted error.
func (e *ValidationError) Addf(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

// Warnf adds a formatted warning.
func (e *ValidationError) Warnf(format string, args ...any) {
	e.Warnings = append(e.Warnings, fmt.Sprintf(format, args...))
}

// Validator validates configuration.
type Validator struct {
	result *ValidationError
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{result: &ValidationError{}}
}

// Warnings returns the warnings gathered by the last Validate call.
func (v *Validator) Warnings() []string {
	return v.result.Warnings
}

// Validate checks cfg and returns a validation error listing every problem
// found. Warnings never fail validation; read them with Warnings.
func (v *Validator) Validate(cfg *Config) error {
	v.result = &ValidationError{}

	v.validateAI(cfg.AI)
	v.validateCommit(cfg.Commit)
	v.validateCache(cfg.Cache)
	v.validateOutput(cfg.Output)

	if v.result.HasErrors() {
		return rperrors.Validation("config.Validate", v.result.Error())
	}
	return nil
}

// Validate is a convenience wrapper around NewValidator().Validate.
func Validate(cfg *Config) ([]string, error) {
	v := NewValidator()
	err := v.Validate(cfg)
	return v.Warnings(), err
}

func (v *Validator) validateAI(cfg AIConfig) {
	if !slices.Contains(validProviders, cfg.Provider) {
		v.result.Addf("ai.provider: must be one of %v, got %q", validProviders, cfg.Provider)
		return
	}
	if cfg.Provider == string(ai.ProviderDisabled) {
		return
	}

	if cfg.Timeout <= 0 {
		v.result.Addf("ai.timeout: must be positive, got %s", cfg.Timeout)
	} else if cfg.Timeout > 2*time.Minute {
		v.result.Warnf("ai.timeout: %s is long for an interactive command", cfg.Timeout)
	}
	if cfg.MaxTokens <= 0 {
		v.result.Addf("ai.max_tokens: must be positive, got %d", cfg.MaxTokens)
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		v.result.Addf("ai.temperature: must be between 0.0 and 2.0, got %.2f", cfg.Temperature)
	}
	if cfg.RetryAttempts < 0 || cfg.RetryAttempts > 10 {
		v.result.Addf("ai.retry_attempts: must be between 0 and 10, got %d", cfg.RetryAttempts)
	}
	if cfg.RateLimitRPM < 0 {
		v.result.Addf("ai.rate_limit_rpm: must not be negative, got %d", cfg.RateLimitRPM)
	}
	if cfg.BaseURL != "" {
		if u, err := url.Parse(cfg.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			v.result.Addf("ai.base_url: invalid URL %q", cfg.BaseURL)
		}
	}

	if cfg.Provider == string(ai.ProviderCloud) {
		if !slices.Contains(validCloudProviders, strings.ToLower(cfg.CloudProvider)) {
			v.result.Addf("ai.cloud_provider: must be one of %v, got %q", validCloudProviders, cfg.CloudProvider)
		}
		if cfg.APIKey == "" || strings.HasPrefix(cfg.APIKey, "${") {
			v.result.Warnf("ai.api_key: not set; generation will fall back to templates")
		}
	}
}

func (v *Validator) validateCommit(cfg CommitConfig) {
	if cfg.MaxHeaderLength < MinHeaderLength || cfg.MaxHeaderLength > MaxHeaderLength {
		v.result.Addf("commit.max_header_length: must be between %d and %d, got %d",
			MinHeaderLength, MaxHeaderLength, cfg.MaxHeaderLength)
	} else if cfg.MaxHeaderLength > 100 {
		v.result.Warnf("commit.max_header_length: %d exceeds the common 100 character limit", cfg.MaxHeaderLength)
	}
}

func (v *Validator) validateCache(cfg CacheConfig) {
	if !cfg.Enabled {
		return
	}
	if !slices.Contains(validBackends, cfg.Backend) {
		v.result.Addf("cache.backend: must be one of %v, got %q", validBackends, cfg.Backend)
	}
	if cfg.Backend == cache.BackendSQLite && cfg.Path == "" {
		v.result.Addf("cache.path: required for the sqlite backend")
	}
	if cfg.TTL < 0 {
		v.result.Addf("cache.ttl: must not be negative, got %s", cfg.TTL)
	}
}

func (v *Validator) validateOutput(cfg OutputConfig) {
	if !slices.Contains(validFormats, cfg.Format) {
		v.result.Addf("output.format: must be one of %v, got %q", validFormats, cfg.Format)
	}
	if !slices.Contains(validLogLevels, strings.ToLower(cfg.LogLevel)) {
		v.result.Addf("output.log_level: must be one of %v, got %q", validLogLevels, cfg.LogLevel)
	}
}
