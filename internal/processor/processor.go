// Package processor drives one group's update end to end: load the
// existing chunk, plan, call the resilient caller for every item needing
// recompute, merge, and persist. Item failures never abort the group; a
// failed item keeps its previous embedding when one exists.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/timhaintz/promptembed/internal/caller"
	"github.com/timhaintz/promptembed/internal/chunkstore"
	"github.com/timhaintz/promptembed/internal/corpus"
	"github.com/timhaintz/promptembed/internal/planner"
	"github.com/timhaintz/promptembed/pkg/types"
)

// Counts tallies plan outcomes for one kind of item.
type Counts struct {
	Recomputed int
	Reused     int
	Skipped    int // not attempted because the circuit breaker was open
	Failed     int
}

// Total returns the number of items the counts cover.
func (c Counts) Total() int {
	return c.Recomputed + c.Reused + c.Skipped + c.Failed
}

// Result reports one processed group.
type Result struct {
	GroupID   string
	Chunk     *types.Chunk
	Patterns  Counts
	Examples  Counts
	FailedIDs []string
	Saved     bool // false when the chunk on disk was already current
}

// Processor orchestrates group updates. One Processor is shared by all
// workers; per-group state lives on the stack.
type Processor struct {
	store  *chunkstore.Store
	caller *caller.Caller
	stats  *types.RunStats
	model  string
	dims   int
	now    func() time.Time
	log    *slog.Logger
}

// New creates a group processor.
func New(store *chunkstore.Store, c *caller.Caller, stats *types.RunStats,
	model string, dims int, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		store:  store,
		caller: c,
		stats:  stats,
		model:  model,
		dims:   dims,
		now:    time.Now,
		log:    log.With("component", "processor"),
	}
}

// Process updates one group. The returned error indicates a group-level
// failure (malformed source entry, unwritable store, cancellation); item
// failures are reported through the Result instead.
func (p *Processor) Process(ctx context.Context, group corpus.Group) (*Result, error) {
	if group.Err != nil {
		return nil, fmt.Errorf("group %s: %w", group.ID, group.Err)
	}

	existing, err := p.store.Load(group.ID)
	if err != nil {
		return nil, err
	}

	plan := planner.Build(existing, group)
	p.log.Info("processing group",
		"group", group.ID,
		"items", group.ItemCount(),
		"recompute", plan.RecomputeCount())

	result := &Result{GroupID: group.ID}
	chunk := types.NewChunk(group.ID, p.model, p.dims)

	if err := p.apply(ctx, plan.Patterns, existingPatterns(existing), chunk.Patterns, &result.Patterns, result); err != nil {
		return nil, err
	}
	if err := p.apply(ctx, plan.Examples, existingExamples(existing), chunk.Examples, &result.Examples, result); err != nil {
		return nil, err
	}

	result.Chunk = chunk
	if !p.changed(existing, chunk, result) {
		// Byte-identical runs leave the file untouched.
		result.Chunk = existing
		return result, nil
	}

	chunk.FinalizeMetadata(p.now())
	if err := p.store.Save(group.ID, chunk); err != nil {
		return nil, err
	}
	result.Saved = true
	return result, nil
}

// apply executes one side of the plan (patterns or examples) into dst.
func (p *Processor) apply(ctx context.Context, decisions []planner.Decision,
	prior map[string]*types.EmbeddingItem, dst map[string]*types.EmbeddingItem,
	counts *Counts, result *Result) error {

	for _, d := range decisions {
		if d.Action == planner.Reuse {
			dst[d.ID] = d.Existing
			counts.Reused++
			continue
		}

		vector, err := p.caller.Embed(ctx, d.Text)
		if err == nil {
			dst[d.ID] = &types.EmbeddingItem{
				ID:              d.ID,
				GroupID:         result.GroupID,
				ParentPatternID: d.ParentPatternID,
				Embedding:       vector,
				ContentHash:     d.Hash,
				LastUpdated:     p.now().UTC(),
			}
			counts.Recomputed++
			continue
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// Stale-but-present beats absent: keep the previous embedding when
		// one exists, with its old hash and timestamp. A new item that
		// fails is simply omitted, never a placeholder.
		if item, ok := prior[d.ID]; ok {
			dst[d.ID] = item
		}
		if errors.Is(err, types.ErrCircuitOpen) {
			counts.Skipped++
			p.log.Debug("item skipped, circuit open", "item", d.ID)
			continue
		}
		counts.Failed++
		result.FailedIDs = append(result.FailedIDs, d.ID)
		p.stats.RecordFailure(d.ID)
		p.log.Warn("item embedding failed", "item", d.ID, "error", err)
	}
	return nil
}

// changed reports whether the rebuilt chunk differs from what is on disk.
func (p *Processor) changed(existing, chunk *types.Chunk, result *Result) bool {
	if existing == nil {
		return true
	}
	if result.Patterns.Recomputed+result.Examples.Recomputed > 0 {
		return true
	}
	if existing.Metadata.Model != chunk.Metadata.Model ||
		existing.Metadata.Dimensions != chunk.Metadata.Dimensions {
		return true
	}
	if !sameIDs(existing.Patterns, chunk.Patterns) || !sameIDs(existing.Examples, chunk.Examples) {
		return true
	}
	return false
}

func sameIDs(a, b map[string]*types.EmbeddingItem) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if _, ok := b[id]; !ok {
			return false
		}
	}
	return true
}

func existingPatterns(chunk *types.Chunk) map[string]*types.EmbeddingItem {
	if chunk == nil {
		return nil
	}
	return chunk.Patterns
}

func existingExamples(chunk *types.Chunk) map[string]*types.EmbeddingItem {
	if chunk == nil {
		return nil
	}
	return chunk.Examples
}
