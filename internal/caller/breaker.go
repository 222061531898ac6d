package caller

import "sync"

// Breaker stops calling a failing provider after a threshold of
// consecutive failures. The failure counter spans calls, not attempts
// within one call: each Embed outcome records exactly one success or
// failure.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	failures  int
}

// NewBreaker creates a breaker that opens after threshold consecutive
// failures.
func NewBreaker(threshold int) *Breaker {
	if threshold <= 0 {
		threshold = DefaultBreakerThreshold
	}
	return &Breaker{threshold: threshold}
}

// Allow reports whether a call may proceed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures < b.threshold
}

// Success resets the failure counter and closes the breaker.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
}

// Failure records a failed call.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
}

// Open reports whether the breaker is currently open.
func (b *Breaker) Open() bool {
	return !b.Allow()
}

// Reset closes the breaker. There is no timer-based half-open state; the
// pipeline resets at group boundaries so one bad streak does not doom
// every later group.
func (b *Breaker) Reset() {
	b.Success()
}
