package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/ratelimit"
	"github.com/felixgeelhaar/fortify/retry"
	"github.com/sashabaranov/go-openai"

	rperrors "github.com/relicta-tech/commitgen/internal/errors"
)

const rateLimitKey = "generate"

// ResilienceConfig configures the guards placed around generation calls.
type ResilienceConfig struct {
	RateLimitRPM int // 0 disables rate limiting

	RetryAttempts    int
	RetryInitialWait time.Duration
	RetryMaxWait     time.Duration

	CircuitBreakerEnabled     bool
	CircuitBreakerThreshold   int           // consecutive failures before opening
	CircuitBreakerTimeout     time.Duration // how long to stay open
	CircuitBreakerMaxRequests int           // probes allowed while half-open
}

// DefaultResilienceConfig keeps retries short: generation sits on the
// interactive path and has a template fallback.
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		RateLimitRPM:              30,
		RetryAttempts:             1,
		RetryInitialWait:          200 * time.Millisecond,
		RetryMaxWait:              2 * time.Second,
		CircuitBreakerEnabled:     true,
		CircuitBreakerThreshold:   3,
		CircuitBreakerTimeout:     30 * time.Second,
		CircuitBreakerMaxRequests: 1,
	}
}

// resilienceFor derives guard settings from a service configuration.
func resilienceFor(cfg ServiceConfig) ResilienceConfig {
	rc := DefaultResilienceConfig()
	rc.RateLimitRPM = cfg.RateLimitRPM
	rc.RetryAttempts = cfg.RetryAttempts
	if cfg.Timeout > 0 && cfg.Timeout < rc.RetryMaxWait {
		rc.RetryMaxWait = cfg.Timeout
	}
	return rc
}

// Resilience applies rate limiting, a circuit breaker and retries to a
// generation call.
type Resilience struct {
	rateLimiter    ratelimit.RateLimiter
	retrier        retry.Retry[string]
	circuitBreaker circuitbreaker.CircuitBreaker[string]
}

// NewResilience creates the guards described by cfg.
func NewResilience(cfg ResilienceConfig) *Resilience {
	r := &Resilience{}

	if cfg.RateLimitRPM > 0 {
		r.rateLimiter = ratelimit.New(&ratelimit.Config{
			Rate:     cfg.RateLimitRPM,
			Burst:    cfg.RateLimitRPM,
			Interval: time.Minute,
		})
	}

	if cfg.RetryAttempts > 0 {
		r.retrier = retry.New[string](retry.Config{
			MaxAttempts:   cfg.RetryAttempts + 1,
			InitialDelay:  cfg.RetryInitialWait,
			MaxDelay:      cfg.RetryMaxWait,
			BackoffPolicy: retry.BackoffExponential,
			Multiplier:    2.0,
			Jitter:        true,
			IsRetryable:   isRetryableError,
		})
	}

	if cfg.CircuitBreakerEnabled {
		threshold := cfg.CircuitBreakerThreshold
		r.circuitBreaker = circuitbreaker.New[string](circuitbreaker.Config{
			MaxRequests: uint32(cfg.CircuitBreakerMaxRequests), // #nosec G115 -- bounded config value
			Interval:    cfg.CircuitBreakerTimeout,
			Timeout:     cfg.CircuitBreakerTimeout,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(threshold) // #nosec G115 -- bounded config value
			},
		})
	}

	return r
}

// Execute runs call behind the rate limiter, then the circuit breaker, then
// the retrier. A nil Resilience runs call directly.
func (r *Resilience) Execute(ctx context.Context, call func(context.Context) (string, error)) (string, error) {
	if r == nil {
		return call(ctx)
	}

	if r.rateLimiter != nil {
		if err := r.rateLimiter.Wait(ctx, rateLimitKey); err != nil {
			return "", err
		}
	}

	if r.circuitBreaker != nil {
		return r.circuitBreaker.Execute(ctx, func(ctx context.Context) (string, error) {
			return r.withRetry(ctx, call)
		})
	}
	return r.withRetry(ctx, call)
}

func (r *Resilience) withRetry(ctx context.Context, call func(context.Context) (string, error)) (string, error) {
	if r.retrier != nil {
		return r.retrier.Do(ctx, call)
	}
	return call(ctx)
}

// isRetryableError decides whether a failed call is worth repeating.
// Cancellation, empty replies and client errors are final.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if rperrors.IsKind(err, rperrors.KindAI) {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return IsRetryableHTTPStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return IsRetryableHTTPStatus(reqErr.HTTPStatusCode)
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"rate limit", "too many requests", "429", "500", "502", "503", "504", "unavailable", "connection", "timeout", "temporary"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// IsRetryableHTTPStatus returns true for HTTP status codes worth retrying.
func IsRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// CircuitBreakerState returns "closed", "half-open", "open" or "disabled".
func (r *Resilience) CircuitBreakerState() string {
	if r == nil || r.circuitBreaker == nil {
		return "disabled"
	}
	return r.circuitBreaker.State().String()
}

// Close releases the rate limiter.
func (r *Resilience) Close() error {
	if r == nil || r.rateLimiter == nil {
		return nil
	}
	return r.rateLimiter.Close()
}
