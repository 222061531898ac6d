// Package pipeline drives a full generation run: load the source corpus,
// process every group, then rebuild the master index and statistics.
//
// The run is a small state machine: Idle → LoadingSource →
// ProcessingGroups → BuildingIndex → Done. Group failures are transient
// states that return to ProcessingGroups for the next group; the only
// fatal condition is an unreadable source corpus. Done is reached even
// when some groups or items failed, and the Summary distinguishes a clean
// run from one with partial failures.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/timhaintz/promptembed/internal/caller"
	"github.com/timhaintz/promptembed/internal/chunkstore"
	"github.com/timhaintz/promptembed/internal/corpus"
	"github.com/timhaintz/promptembed/internal/indexer"
	"github.com/timhaintz/promptembed/internal/processor"
	"github.com/timhaintz/promptembed/pkg/types"
)

// State is the driver's position in the run.
type State int

const (
	StateIdle State = iota
	StateLoadingSource
	StateProcessingGroups
	StateBuildingIndex
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoadingSource:
		return "loading_source"
	case StateProcessingGroups:
		return "processing_groups"
	case StateBuildingIndex:
		return "building_index"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Options configures one run.
type Options struct {
	SourcePath string
	Limit      int // cap on groups processed; 0 means all
	Workers    int // bounded group concurrency; <=1 means sequential
}

// Summary is the run's outcome.
type Summary struct {
	GroupsProcessed int
	GroupsFailed    int
	Patterns        processor.Counts
	Examples        processor.Counts
	FailedItems     int
	DuplicateIDs    []string
	APICalls        int64
	TokensUsed      int64
	Duration        time.Duration
}

// Clean reports whether the run completed without any failed groups or
// items. Partial failures still exit zero; Clean is for log summaries.
func (s *Summary) Clean() bool {
	return s.GroupsFailed == 0 && s.FailedItems == 0 && len(s.DuplicateIDs) == 0
}

// Driver runs the pipeline. The caller's limiter/breaker and the RunStats
// are shared across workers by construction: the driver owns one of each.
type Driver struct {
	store   *chunkstore.Store
	proc    *processor.Processor
	caller  *caller.Caller
	builder *indexer.Builder
	stats   *types.RunStats
	log     *slog.Logger

	state State
}

// New creates a driver over already-wired components.
func New(store *chunkstore.Store, proc *processor.Processor, c *caller.Caller,
	builder *indexer.Builder, stats *types.RunStats, log *slog.Logger) *Driver {
	if log == nil {
		log = slog.Default()
	}
	return &Driver{
		store:   store,
		proc:    proc,
		caller:  c,
		builder: builder,
		stats:   stats,
		log:     log.With("component", "pipeline"),
		state:   StateIdle,
	}
}

// State returns the driver's current state.
func (d *Driver) State() State {
	return d.state
}

// Run executes the pipeline. The returned error is non-nil only for the
// fatal source-unreadable condition (or cancellation before completion);
// group and item failures are recorded in the Summary and in the stats
// artifact instead.
func (d *Driver) Run(ctx context.Context, opts Options) (*Summary, error) {
	start := time.Now()

	d.transition(StateLoadingSource)
	groups, err := corpus.Load(opts.SourcePath)
	if err != nil {
		return nil, err
	}
	if opts.Limit > 0 && opts.Limit < len(groups) {
		groups = groups[:opts.Limit]
	}
	d.log.Info("source corpus loaded", "groups", len(groups), "path", opts.SourcePath)

	d.transition(StateProcessingGroups)
	summary := &Summary{}
	if err := d.processGroups(ctx, groups, opts.Workers, summary); err != nil {
		return nil, err
	}

	// The index is built only after every group worker has finished; this
	// is a barrier, not a best-effort race.
	d.transition(StateBuildingIndex)
	index, duplicates, err := d.builder.Build(d.stats)
	if err != nil {
		return nil, fmt.Errorf("build master index: %w", err)
	}
	if err := d.builder.WriteIndex(index); err != nil {
		return nil, err
	}

	summary.DuplicateIDs = duplicates
	summary.FailedItems = len(d.stats.FailedItems())
	summary.APICalls = d.stats.APICalls()
	summary.TokensUsed = d.stats.TokensUsed()
	summary.Duration = time.Since(start)

	genStats := d.builder.BuildStats(indexer.StatsInput{
		GroupsProcessed: summary.GroupsProcessed,
		GroupsFailed:    summary.GroupsFailed,
		Recomputed:      summary.Patterns.Recomputed + summary.Examples.Recomputed,
		Reused:          summary.Patterns.Reused + summary.Examples.Reused,
		Skipped:         summary.Patterns.Skipped + summary.Examples.Skipped,
		Failed:          summary.Patterns.Failed + summary.Examples.Failed,
		DuplicateIDs:    duplicates,
	}, d.stats)
	if err := d.builder.WriteStats(genStats); err != nil {
		return nil, err
	}

	d.transition(StateDone)
	d.log.Info("run complete",
		"clean", summary.Clean(),
		"groups", summary.GroupsProcessed,
		"groups_failed", summary.GroupsFailed,
		"recomputed", genStats.Recomputed,
		"reused", genStats.Reused,
		"failed_items", summary.FailedItems,
		"api_calls", summary.APICalls,
		"tokens", summary.TokensUsed,
		"duration", summary.Duration)
	return summary, nil
}

// processGroups fans groups out over a bounded worker pool. One group's
// failure is logged and counted, never propagated: the errgroup carries
// only cancellation.
func (d *Driver) processGroups(ctx context.Context, groups []corpus.Group, workers int, summary *Summary) error {
	if workers < 1 {
		workers = 1
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, group := range groups {
		group := group
		// Cancellation is observed between groups, never mid-chunk-write.
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			result, err := d.proc.Process(gctx, group)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				summary.GroupsFailed++
				d.stats.RecordFailure("group:" + group.ID)
				d.log.Error("group failed", "group", group.ID, "error", err)
				return nil
			}
			summary.GroupsProcessed++
			summary.Patterns = addCounts(summary.Patterns, result.Patterns)
			summary.Examples = addCounts(summary.Examples, result.Examples)

			// A tripped breaker is scoped to the group that tripped it: the
			// next group gets a fresh streak rather than an automatic
			// timer-based probe.
			if d.caller.BreakerOpen() {
				d.caller.ResetBreaker()
				d.log.Warn("circuit breaker reset at group boundary", "group", group.ID)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (d *Driver) transition(next State) {
	d.log.Debug("state transition", "from", d.state.String(), "to", next.String())
	d.state = next
}

func addCounts(a, b processor.Counts) processor.Counts {
	return processor.Counts{
		Recomputed: a.Recomputed + b.Recomputed,
		Reused:     a.Reused + b.Reused,
		Skipped:    a.Skipped + b.Skipped,
		Failed:     a.Failed + b.Failed,
	}
}
