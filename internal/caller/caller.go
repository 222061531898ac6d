package caller

import (
	"context"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/timhaintz/promptembed/internal/provider"
	"github.com/timhaintz/promptembed/pkg/types"
)

// Policy defaults
const (
	DefaultMinInterval       = 100 * time.Millisecond
	DefaultMaxAttempts       = 3
	DefaultBaseDelay         = 200 * time.Millisecond
	DefaultMaxDelay          = 5 * time.Second
	DefaultBackoffMultiplier = 2.0
	DefaultRateLimitDelay    = 2 * time.Second
	DefaultBreakerThreshold  = 5
	DefaultCacheSize         = 10000
)

// Config configures the resilience policy around the provider.
type Config struct {
	MinInterval      time.Duration
	Retry            RetryConfig
	BreakerThreshold int
	CacheSize        int
}

// DefaultConfig returns the reference policy.
func DefaultConfig() Config {
	return Config{
		MinInterval:      DefaultMinInterval,
		Retry:            DefaultRetryConfig(),
		BreakerThreshold: DefaultBreakerThreshold,
		CacheSize:        DefaultCacheSize,
	}
}

// Caller turns the unreliable, rate-limited provider into a call that
// either returns a vector or a well-typed failure. The rate limiter,
// breaker, and stats are shared state: one Caller serves every worker.
type Caller struct {
	provider provider.Provider
	limiter  *rate.Limiter
	breaker  *Breaker
	cache    *lru.Cache[string, []float32]
	retry    RetryConfig
	stats    *types.RunStats
	log      *slog.Logger
}

// New creates a caller around the provider. stats must be non-nil; the
// same instance feeds the end-of-run index metadata.
func New(p provider.Provider, stats *types.RunStats, cfg Config, log *slog.Logger) *Caller {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = DefaultMinInterval
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if log == nil {
		log = slog.Default()
	}

	cache, err := lru.New[string, []float32](cfg.CacheSize)
	if err != nil {
		cache, _ = lru.New[string, []float32](DefaultCacheSize)
	}

	return &Caller{
		provider: p,
		limiter:  rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		breaker:  NewBreaker(cfg.BreakerThreshold),
		cache:    cache,
		retry:    cfg.Retry,
		stats:    stats,
		log:      log.With("component", "caller"),
	}
}

// Embed returns the embedding vector for text, or a classified failure.
// The breaker is checked before any network contact; an open breaker
// fails fast with types.ErrCircuitOpen.
func (c *Caller) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, types.ErrEmptyText
	}

	hash := types.ContentHash(text)
	if vector, ok := c.cache.Get(hash); ok {
		out := make([]float32, len(vector))
		copy(out, vector)
		return out, nil
	}

	if !c.breaker.Allow() {
		return nil, types.ErrCircuitOpen
	}

	emb, err := retryWithBackoff(ctx, c.retry, func() (*provider.Embedding, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		c.stats.RecordCall()
		return c.provider.Embed(ctx, text)
	})
	if err != nil {
		c.breaker.Failure()
		if c.breaker.Open() {
			c.log.Warn("circuit breaker opened", "threshold", c.breaker.threshold)
		}
		return nil, err
	}

	c.breaker.Success()
	c.stats.RecordTokens(emb.Tokens)
	c.cache.Add(hash, emb.Vector)

	out := make([]float32, len(emb.Vector))
	copy(out, emb.Vector)
	return out, nil
}

// ResetBreaker closes the circuit breaker. Called by the driver at group
// boundaries; there is no automatic timer-based reset.
func (c *Caller) ResetBreaker() {
	c.breaker.Reset()
}

// BreakerOpen reports whether the breaker is currently open.
func (c *Caller) BreakerOpen() bool {
	return c.breaker.Open()
}
