// Package indexer rebuilds the master index and run statistics from the
// chunk files on disk. The index is derived state: scanning all chunks and
// regenerating it wholesale is what keeps it trustworthy after partial
// failures, manual chunk deletion, or a crashed previous run.
package indexer

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/timhaintz/promptembed/internal/chunkstore"
	"github.com/timhaintz/promptembed/pkg/types"
)

// Artifact file names within the output directory.
const (
	IndexFileName = "master-index.json"
	StatsFileName = "generation-stats.json"

	// FailedItemsPreview caps the failed-ID list in the stats artifact so
	// consumers resolving IDs never parse an unbounded failure dump.
	FailedItemsPreview = 50
)

// Builder scans chunk files and produces the master index.
type Builder struct {
	store *chunkstore.Store
	model string
	now   func() time.Time
	log   *slog.Logger
}

// New creates an index builder over the store's output directory.
func New(store *chunkstore.Store, model string, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{
		store: store,
		model: model,
		now:   time.Now,
		log:   log.With("component", "indexer"),
	}
}

// Build scans every chunk file and assembles the master index. Duplicate
// item IDs across groups are a data-integrity error: they are reported in
// the returned list (first owner wins in the index) rather than silently
// overwritten.
func (b *Builder) Build(stats *types.RunStats) (*types.MasterIndex, []string, error) {
	groupIDs, err := b.store.GroupIDs()
	if err != nil {
		return nil, nil, err
	}

	index := types.NewMasterIndex(b.model)
	var duplicates []string

	for _, groupID := range groupIDs {
		chunk, err := b.store.Load(groupID)
		if err != nil {
			return nil, nil, err
		}
		if chunk == nil {
			// Corrupt file surfaced by Load as a cold cache; it owns no
			// items until regenerated.
			b.log.Warn("skipping unreadable chunk during index build", "group", groupID)
			continue
		}

		index.Groups[groupID] = types.GroupEntry{
			File:         chunkstore.FileName(groupID),
			PatternCount: len(chunk.Patterns),
			ExampleCount: len(chunk.Examples),
			LastUpdated:  chunk.LastUpdated(),
		}

		for _, id := range sortedIDs(chunk.Patterns) {
			duplicates = b.claim(index, duplicates, id, groupID)
		}
		for _, id := range sortedIDs(chunk.Examples) {
			duplicates = b.claim(index, duplicates, id, groupID)
		}
	}

	index.Metadata.GeneratedAt = b.now().UTC()
	index.Metadata.TotalGroups = len(index.Groups)
	if stats != nil {
		index.Metadata.TotalAPICalls = stats.APICalls()
		index.Metadata.TotalTokensUsed = stats.TokensUsed()
	}

	for _, dup := range duplicates {
		b.log.Error("duplicate item ID across groups", "conflict", dup)
	}
	return index, duplicates, nil
}

func (b *Builder) claim(index *types.MasterIndex, duplicates []string, id, groupID string) []string {
	if owner, ok := index.ItemToGroup[id]; ok {
		return append(duplicates, fmt.Sprintf("%s (groups %s, %s): %v",
			id, owner, groupID, types.ErrDuplicateItemID))
	}
	index.ItemToGroup[id] = groupID
	return duplicates
}

// WriteIndex persists the master index atomically.
func (b *Builder) WriteIndex(index *types.MasterIndex) error {
	return b.store.WriteArtifact(IndexFileName, index)
}

// GenerationStats is the run-level statistics artifact, written separately
// from the index so ID-resolution consumers never touch failure details.
type GenerationStats struct {
	GeneratedAt     time.Time `json:"generatedAt"`
	EmbeddingModel  string    `json:"embeddingModel"`
	GroupsProcessed int       `json:"groupsProcessed"`
	GroupsFailed    int       `json:"groupsFailed"`
	Recomputed      int       `json:"recomputed"`
	Reused          int       `json:"reused"`
	Skipped         int       `json:"skipped"`
	Failed          int       `json:"failed"`
	TotalAPICalls   int64     `json:"totalApiCalls"`
	TotalTokensUsed int64     `json:"totalTokensUsed"`
	DuplicateIDs    []string  `json:"duplicateIds,omitempty"`

	// FailedItems is a bounded preview; FailedItemsTotal is the real count.
	FailedItems      []string `json:"failedItems"`
	FailedItemsTotal int      `json:"failedItemsTotal"`
}

// StatsInput carries the driver's aggregate counters into the artifact.
type StatsInput struct {
	GroupsProcessed int
	GroupsFailed    int
	Recomputed      int
	Reused          int
	Skipped         int
	Failed          int
	DuplicateIDs    []string
}

// BuildStats assembles the statistics artifact from the run counters.
func (b *Builder) BuildStats(in StatsInput, stats *types.RunStats) *GenerationStats {
	failed := stats.FailedItems()
	preview := failed
	if len(preview) > FailedItemsPreview {
		preview = preview[:FailedItemsPreview]
	}

	return &GenerationStats{
		GeneratedAt:      b.now().UTC(),
		EmbeddingModel:   b.model,
		GroupsProcessed:  in.GroupsProcessed,
		GroupsFailed:     in.GroupsFailed,
		Recomputed:       in.Recomputed,
		Reused:           in.Reused,
		Skipped:          in.Skipped,
		Failed:           in.Failed,
		TotalAPICalls:    stats.APICalls(),
		TotalTokensUsed:  stats.TokensUsed(),
		DuplicateIDs:     in.DuplicateIDs,
		FailedItems:      preview,
		FailedItemsTotal: len(failed),
	}
}

// WriteStats persists the statistics artifact atomically.
func (b *Builder) WriteStats(stats *GenerationStats) error {
	return b.store.WriteArtifact(StatsFileName, stats)
}

func sortedIDs(items map[string]*types.EmbeddingItem) []string {
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
