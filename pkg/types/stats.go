package types

import (
	"sync"
	"sync/atomic"
)

// RunStats accumulates run-level counters shared across pipeline workers.
// The caller increments API-call and token counts; processors record failed
// item IDs. All methods are safe for concurrent use: counter state is
// explicit here rather than scattered across component fields, so a
// concurrent driver shares exactly one instance by construction.
type RunStats struct {
	apiCalls    atomic.Int64
	tokensUsed  atomic.Int64
	mu          sync.Mutex
	failedItems []string
}

// RecordCall counts one actual provider invocation.
func (s *RunStats) RecordCall() {
	s.apiCalls.Add(1)
}

// RecordTokens adds tokens consumed by a successful call.
func (s *RunStats) RecordTokens(n int) {
	s.tokensUsed.Add(int64(n))
}

// RecordFailure records an item that could not be embedded this run.
func (s *RunStats) RecordFailure(itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedItems = append(s.failedItems, itemID)
}

// APICalls returns the total provider invocations so far.
func (s *RunStats) APICalls() int64 {
	return s.apiCalls.Load()
}

// TokensUsed returns the total tokens consumed so far.
func (s *RunStats) TokensUsed() int64 {
	return s.tokensUsed.Load()
}

// FailedItems returns a copy of the failed item IDs recorded so far.
func (s *RunStats) FailedItems() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.failedItems))
	copy(out, s.failedItems)
	return out
}
