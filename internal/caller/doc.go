// Package caller wraps the embedding provider with the resilience policy:
// rate limiting, retry with exponential backoff, and a circuit breaker.
// It is the only component that talks to the network.
//
// # Rate Limiting
//
// Calls are spaced by a minimum inter-call interval using a token bucket of
// size one. The limiter is shared across all workers, so parallelizing
// groups never multiplies the request rate.
//
// # Retry Policy
//
// Retryable failures (explicit rate-limit signals and 5xx-class errors) are
// retried up to a configured number of attempts with exponential backoff.
// Rate-limit signals get an additional fixed delay on top of the
// exponential term. Client errors fail immediately without consuming the
// retry budget.
//
// # Circuit Breaker
//
// The breaker counts consecutive failed calls. Once the threshold is
// reached, further Embed calls fail fast with types.ErrCircuitOpen without
// contacting the provider. A single allowed success closes the breaker.
// There is no timer-based half-open probe: the breaker stays open until an
// explicit Reset, which the pipeline performs at group boundaries.
//
// # Caching
//
// Results are cached in-process by content hash (LRU), so duplicate texts
// within one run cost a single API call.
package caller
