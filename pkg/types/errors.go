package types

import (
	"errors"
	"fmt"
)

// Domain errors shared across pipeline components
var (
	// Chunk validation errors
	ErrInvalidChunk       = errors.New("invalid chunk")
	ErrMissingItemID      = errors.New("item ID is required")
	ErrMissingGroupID     = errors.New("group ID is required")
	ErrMissingContentHash = errors.New("content hash is required")
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")

	// ErrEmptyText is returned before any provider contact for blank input.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrCircuitOpen is synthetic: raised by the caller without contacting
	// the provider once the consecutive-failure threshold has been reached.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrSourceUnreadable is the only fatal error: the pipeline aborts when
	// the source corpus cannot be read or parsed. Everything else degrades
	// to per-item or per-group failure records.
	ErrSourceUnreadable = errors.New("source corpus unreadable")

	// ErrDuplicateItemID marks the same item ID appearing in two different
	// groups' chunks, a data-integrity error reported by the index builder.
	ErrDuplicateItemID = errors.New("duplicate item ID across groups")
)

// Classification buckets provider failures for the retry policy.
type Classification string

const (
	// RateLimited is an explicit rate-limit signal (HTTP 429). Retryable,
	// with an extra fixed delay on top of the exponential backoff term.
	RateLimited Classification = "rate_limited"
	// ServerError is a 5xx-class or transport-level failure. Retryable.
	ServerError Classification = "server_error"
	// ClientError is a 4xx-class failure (malformed input, auth). Never
	// retried; the retry budget is not consumed.
	ClientError Classification = "client_error"
)

// ProviderError is a classified failure from the embedding provider.
type ProviderError struct {
	Class  Classification
	Status int // HTTP status when known, 0 otherwise
	Err    error
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("provider %s (status %d): %v", e.Class, e.Status, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Class, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the retry policy should attempt the call again.
func (e *ProviderError) Retryable() bool {
	return e.Class == RateLimited || e.Class == ServerError
}

// IsRetryable reports whether err is a retryable provider failure.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return false
}

// IsRateLimited reports whether err carries an explicit rate-limit signal.
func IsRateLimited(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Class == RateLimited
	}
	return false
}
