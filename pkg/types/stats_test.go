package types

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunStatsConcurrent(t *testing.T) {
	stats := &RunStats{}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				stats.RecordCall()
				stats.RecordTokens(7)
				stats.RecordFailure("item")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1000), stats.APICalls())
	assert.Equal(t, int64(7000), stats.TokensUsed())
	assert.Len(t, stats.FailedItems(), 1000)
}

func TestRunStatsFailedItemsCopy(t *testing.T) {
	stats := &RunStats{}
	stats.RecordFailure("a")

	got := stats.FailedItems()
	got[0] = "mutated"

	assert.Equal(t, []string{"a"}, stats.FailedItems())
}
