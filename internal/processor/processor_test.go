package processor

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timhaintz/promptembed/internal/caller"
	"github.com/timhaintz/promptembed/internal/chunkstore"
	"github.com/timhaintz/promptembed/internal/corpus"
	"github.com/timhaintz/promptembed/internal/provider"
	"github.com/timhaintz/promptembed/pkg/types"
)

const testDims = 8

// scriptedProvider fails embeds for texts listed in failTexts.
type scriptedProvider struct {
	mu        sync.Mutex
	calls     int
	failTexts map[string]bool
	failAll   bool
}

func (s *scriptedProvider) Embed(ctx context.Context, text string) (*provider.Embedding, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.failAll || s.failTexts[text] {
		return nil, &types.ProviderError{Class: types.ClientError, Status: 400, Err: errors.New("rejected")}
	}
	// Vector derived from text length so different texts embed differently.
	vec := make([]float32, testDims)
	vec[0] = float32(len(text))
	return &provider.Embedding{Vector: vec, Tokens: len(text)}, nil
}

func (s *scriptedProvider) Dimension() int { return testDims }
func (s *scriptedProvider) Model() string  { return "fake-model" }

func (s *scriptedProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func fastCallerConfig() caller.Config {
	return caller.Config{
		MinInterval: time.Microsecond,
		Retry: caller.RetryConfig{
			MaxAttempts: 2,
			BaseDelay:   time.Millisecond,
			MaxDelay:    2 * time.Millisecond,
			Multiplier:  2.0,
		},
		BreakerThreshold: 5,
		CacheSize:        64,
	}
}

type fixture struct {
	store    *chunkstore.Store
	provider *scriptedProvider
	stats    *types.RunStats
	proc     *Processor
}

func newFixture(t *testing.T, fp *scriptedProvider) *fixture {
	t.Helper()
	store := chunkstore.New(t.TempDir(), nil)
	stats := &types.RunStats{}
	c := caller.New(fp, stats, fastCallerConfig(), nil)
	return &fixture{
		store:    store,
		provider: fp,
		stats:    stats,
		proc:     New(store, c, stats, "fake-model", testDims, nil),
	}
}

func testGroup() corpus.Group {
	return corpus.Group{
		ID: "7",
		Patterns: []corpus.Pattern{
			{
				ID:   "7-0-0",
				Text: "Translation French to English",
				Examples: []corpus.Example{
					{ID: "7-0-0-0", ParentPatternID: "7-0-0", Text: "Translate French to English:"},
					{ID: "7-0-0-1", ParentPatternID: "7-0-0", Text: "sea otter => loutre de mer"},
				},
			},
		},
	}
}

func TestProcessColdCache(t *testing.T) {
	f := newFixture(t, &scriptedProvider{})

	result, err := f.proc.Process(context.Background(), testGroup())
	require.NoError(t, err)

	assert.Equal(t, Counts{Recomputed: 1}, result.Patterns)
	assert.Equal(t, Counts{Recomputed: 2}, result.Examples)
	assert.True(t, result.Saved)
	assert.Empty(t, result.FailedIDs)

	chunk, err := f.store.Load("7")
	require.NoError(t, err)
	require.NotNil(t, chunk)
	assert.Equal(t, 1, chunk.Metadata.TotalPatterns)
	assert.Equal(t, 2, chunk.Metadata.TotalExamples)
	assert.Equal(t, types.ContentHash("Translate French to English:"),
		chunk.Examples["7-0-0-0"].ContentHash)
	assert.Equal(t, "7-0-0", chunk.Examples["7-0-0-0"].ParentPatternID)
}

func TestProcessIdempotent(t *testing.T) {
	f := newFixture(t, &scriptedProvider{})

	_, err := f.proc.Process(context.Background(), testGroup())
	require.NoError(t, err)
	firstBytes, err := os.ReadFile(f.store.Path("7"))
	require.NoError(t, err)
	calls := f.provider.callCount()

	result, err := f.proc.Process(context.Background(), testGroup())
	require.NoError(t, err)

	assert.Equal(t, Counts{Reused: 1}, result.Patterns)
	assert.Equal(t, Counts{Reused: 2}, result.Examples)
	assert.False(t, result.Saved)
	assert.Equal(t, calls, f.provider.callCount(), "unchanged source must make zero provider calls")

	secondBytes, err := os.ReadFile(f.store.Path("7"))
	require.NoError(t, err)
	assert.Equal(t, firstBytes, secondBytes, "unchanged run must leave the chunk byte-identical")
}

func TestProcessIncrementalChange(t *testing.T) {
	f := newFixture(t, &scriptedProvider{})

	_, err := f.proc.Process(context.Background(), testGroup())
	require.NoError(t, err)
	before, err := f.store.Load("7")
	require.NoError(t, err)

	group := testGroup()
	group.Patterns[0].Examples[1].Text = "cheese => fromage"
	result, err := f.proc.Process(context.Background(), group)
	require.NoError(t, err)

	assert.Equal(t, Counts{Reused: 1}, result.Patterns)
	assert.Equal(t, Counts{Recomputed: 1, Reused: 1}, result.Examples)
	assert.True(t, result.Saved)

	after, err := f.store.Load("7")
	require.NoError(t, err)

	// Exactly the changed example was recomputed.
	assert.Equal(t, types.ContentHash("cheese => fromage"), after.Examples["7-0-0-1"].ContentHash)
	assert.NotEqual(t, before.Examples["7-0-0-1"].ContentHash, after.Examples["7-0-0-1"].ContentHash)

	// Siblings keep their prior hash, embedding, and timestamp.
	assert.Equal(t, before.Examples["7-0-0-0"], after.Examples["7-0-0-0"])
	assert.Equal(t, before.Patterns["7-0-0"], after.Patterns["7-0-0"])
}

func TestProcessFailurePreservesPreviousEmbedding(t *testing.T) {
	fp := &scriptedProvider{}
	f := newFixture(t, fp)

	_, err := f.proc.Process(context.Background(), testGroup())
	require.NoError(t, err)
	before, err := f.store.Load("7")
	require.NoError(t, err)

	// The text changes, but the provider rejects the new text.
	group := testGroup()
	group.Patterns[0].Examples[0].Text = "bad new text"
	fp.failTexts = map[string]bool{"bad new text": true}

	result, err := f.proc.Process(context.Background(), group)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Examples.Failed)
	assert.Equal(t, []string{"7-0-0-0"}, result.FailedIDs)
	assert.Equal(t, []string{"7-0-0-0"}, f.stats.FailedItems())

	after, err := f.store.Load("7")
	require.NoError(t, err)
	// Stale-but-present beats absent: the old embedding survives with its
	// old hash and timestamp.
	assert.Equal(t, before.Examples["7-0-0-0"], after.Examples["7-0-0-0"])
}

func TestProcessNewItemFailureIsOmitted(t *testing.T) {
	fp := &scriptedProvider{failTexts: map[string]bool{"sea otter => loutre de mer": true}}
	f := newFixture(t, fp)

	result, err := f.proc.Process(context.Background(), testGroup())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Examples.Failed)
	assert.Equal(t, 1, result.Examples.Recomputed)

	chunk, err := f.store.Load("7")
	require.NoError(t, err)
	// Absence, not a placeholder.
	_, ok := chunk.Examples["7-0-0-1"]
	assert.False(t, ok)
	_, ok = chunk.Examples["7-0-0-0"]
	assert.True(t, ok)
}

func TestProcessCircuitOpenSkipsItems(t *testing.T) {
	fp := &scriptedProvider{failAll: true}
	f := newFixture(t, fp)

	// Threshold is 5: the first five recompute attempts fail against the
	// provider, the rest of a large group is skipped without contact.
	group := corpus.Group{ID: "9"}
	for i := 0; i < 8; i++ {
		group.Patterns = append(group.Patterns, corpus.Pattern{
			ID:   "9-0-" + string(rune('0'+i)),
			Text: "pattern " + string(rune('a'+i)),
		})
	}

	result, err := f.proc.Process(context.Background(), group)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Patterns.Failed)
	assert.Equal(t, 3, result.Patterns.Skipped)
	assert.Equal(t, 5, fp.callCount())
}

func TestProcessMalformedGroupFails(t *testing.T) {
	f := newFixture(t, &scriptedProvider{})

	group := testGroup()
	group.Err = errors.New("paper id appears twice")
	_, err := f.proc.Process(context.Background(), group)
	assert.Error(t, err)

	// Nothing written for a failed group.
	chunk, loadErr := f.store.Load("7")
	require.NoError(t, loadErr)
	assert.Nil(t, chunk)
}

func TestProcessCancellationAbortsWithoutSave(t *testing.T) {
	f := newFixture(t, &scriptedProvider{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.proc.Process(ctx, testGroup())
	assert.ErrorIs(t, err, context.Canceled)

	chunk, loadErr := f.store.Load("7")
	require.NoError(t, loadErr)
	assert.Nil(t, chunk, "a cancelled group must not leave a partial chunk")
}
