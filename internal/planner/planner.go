// Package planner decides, per item, whether an existing embedding can be
// reused or the item must be recomputed. The decision is a pure function of
// the existing chunk and the current source text: no network, no mutation.
package planner

import (
	"github.com/timhaintz/promptembed/internal/corpus"
	"github.com/timhaintz/promptembed/pkg/types"
)

// Action classifies one item.
type Action int

const (
	// Reuse keeps the existing embedding: the item is present in the prior
	// chunk and its content hash is unchanged.
	Reuse Action = iota
	// Recompute requires a provider call: the item is new or its text
	// changed since the prior run.
	Recompute
)

func (a Action) String() string {
	switch a {
	case Reuse:
		return "reuse"
	case Recompute:
		return "recompute"
	default:
		return "unknown"
	}
}

// Decision is the plan for one item. Hash is always the hash of the
// current source text; Existing is set only for Reuse.
type Decision struct {
	ID              string
	ParentPatternID string // set for example items
	Action          Action
	Text            string
	Hash            string
	Existing        *types.EmbeddingItem
}

// Plan holds the decisions for one group, patterns before examples.
type Plan struct {
	Patterns []Decision
	Examples []Decision
}

// RecomputeCount returns how many items need a provider call.
func (p *Plan) RecomputeCount() int {
	n := 0
	for _, d := range p.Patterns {
		if d.Action == Recompute {
			n++
		}
	}
	for _, d := range p.Examples {
		if d.Action == Recompute {
			n++
		}
	}
	return n
}

// Build diffs the group's current source items against the existing chunk.
// existing may be nil (cold cache): every item is then Recompute.
func Build(existing *types.Chunk, group corpus.Group) Plan {
	var plan Plan
	for _, pattern := range group.Patterns {
		plan.Patterns = append(plan.Patterns, decide(
			patternLookup(existing), pattern.ID, pattern.Text, ""))
		for _, example := range pattern.Examples {
			plan.Examples = append(plan.Examples, decide(
				exampleLookup(existing), example.ID, example.Text, example.ParentPatternID))
		}
	}
	return plan
}

func decide(lookup func(string) *types.EmbeddingItem, id, text, parentID string) Decision {
	d := Decision{
		ID:              id,
		ParentPatternID: parentID,
		Text:            text,
		Hash:            types.ContentHash(text),
	}
	prior := lookup(id)
	if prior != nil && prior.ContentHash == d.Hash {
		d.Action = Reuse
		d.Existing = prior
		return d
	}
	d.Action = Recompute
	return d
}

func patternLookup(chunk *types.Chunk) func(string) *types.EmbeddingItem {
	return func(id string) *types.EmbeddingItem {
		if chunk == nil {
			return nil
		}
		return chunk.Patterns[id]
	}
}

func exampleLookup(chunk *types.Chunk) func(string) *types.EmbeddingItem {
	return func(id string) *types.EmbeddingItem {
		if chunk == nil {
			return nil
		}
		return chunk.Examples[id]
	}
}
