package caller

import (
	"context"
	"time"

	"github.com/timhaintz/promptembed/pkg/types"
)

// RetryConfig configures exponential backoff retry behavior.
type RetryConfig struct {
	MaxAttempts    int           // Total attempts, including the first
	BaseDelay      time.Duration // Initial delay between attempts
	MaxDelay       time.Duration // Cap on the exponential term
	Multiplier     float64       // Exponential backoff multiplier
	RateLimitDelay time.Duration // Extra fixed delay after a rate-limit signal
}

// DefaultRetryConfig returns the standard retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    DefaultMaxAttempts,
		BaseDelay:      DefaultBaseDelay,
		MaxDelay:       DefaultMaxDelay,
		Multiplier:     DefaultBackoffMultiplier,
		RateLimitDelay: DefaultRateLimitDelay,
	}
}

// retryWithBackoff executes fn with exponential backoff. Only retryable
// provider errors are attempted again; a client error returns immediately
// without consuming the retry budget. Rate-limit signals sleep the extra
// fixed delay on top of the exponential term regardless of any advisory
// retry-after the provider sends.
func retryWithBackoff[T any](ctx context.Context, config RetryConfig, fn func() (T, error)) (T, error) {
	var lastErr error
	var zero T
	backoff := config.BaseDelay

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !types.IsRetryable(err) {
			return zero, err
		}

		if attempt < config.MaxAttempts-1 {
			delay := backoff
			if types.IsRateLimited(err) {
				delay += config.RateLimitDelay
			}
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
				backoff = time.Duration(float64(backoff) * config.Multiplier)
				if backoff > config.MaxDelay {
					backoff = config.MaxDelay
				}
			}
		}
	}

	return zero, lastErr
}
