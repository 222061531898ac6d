package types

import (
	"fmt"
	"time"
)

// EmbeddingItem is one embedded pattern or example prompt.
type EmbeddingItem struct {
	// Identification
	ID      string `json:"id"`
	GroupID string `json:"groupId"`

	// ParentPatternID back-references the owning pattern for example items.
	// Empty for pattern items.
	ParentPatternID string `json:"parentPatternId,omitempty"`

	// Content
	Embedding   []float32 `json:"embedding"`
	ContentHash string    `json:"contentHash"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Validate checks the item against the expected vector dimension.
func (it *EmbeddingItem) Validate(dimensions int) error {
	if it.ID == "" {
		return ErrMissingItemID
	}
	if it.GroupID == "" {
		return fmt.Errorf("item %s: %w", it.ID, ErrMissingGroupID)
	}
	if it.ContentHash == "" {
		return fmt.Errorf("item %s: %w", it.ID, ErrMissingContentHash)
	}
	if len(it.Embedding) != dimensions {
		return fmt.Errorf("item %s: %w: got %d, want %d",
			it.ID, ErrDimensionMismatch, len(it.Embedding), dimensions)
	}
	return nil
}

// ChunkMetadata describes the provenance and shape of a chunk.
type ChunkMetadata struct {
	Model         string    `json:"model"`
	Dimensions    int       `json:"dimensions"`
	GeneratedAt   time.Time `json:"generatedAt"`
	TotalPatterns int       `json:"totalPatterns"`
	TotalExamples int       `json:"totalExamples"`
	GroupIDs      []string  `json:"groupIds"`
}

// Chunk holds all embeddings for one group. It is the unit of atomic
// persistence: a chunk file is fully replaced on write, never partially
// patched, so a crash mid-write cannot leave a torn file.
type Chunk struct {
	Metadata ChunkMetadata             `json:"metadata"`
	Patterns map[string]*EmbeddingItem `json:"patterns"`
	Examples map[string]*EmbeddingItem `json:"examples"`
}

// NewChunk creates an empty chunk for a group.
func NewChunk(groupID, model string, dimensions int) *Chunk {
	return &Chunk{
		Metadata: ChunkMetadata{
			Model:      model,
			Dimensions: dimensions,
			GroupIDs:   []string{groupID},
		},
		Patterns: make(map[string]*EmbeddingItem),
		Examples: make(map[string]*EmbeddingItem),
	}
}

// GroupID returns the chunk's owning group.
func (c *Chunk) GroupID() string {
	if len(c.Metadata.GroupIDs) == 0 {
		return ""
	}
	return c.Metadata.GroupIDs[0]
}

// ItemCount returns the total number of items in the chunk.
func (c *Chunk) ItemCount() int {
	return len(c.Patterns) + len(c.Examples)
}

// FinalizeMetadata refreshes the derived metadata fields before a write.
func (c *Chunk) FinalizeMetadata(now time.Time) {
	c.Metadata.GeneratedAt = now.UTC()
	c.Metadata.TotalPatterns = len(c.Patterns)
	c.Metadata.TotalExamples = len(c.Examples)
}

// Validate performs comprehensive validation of the chunk. Vector length is
// an invariant checked at write time; map keys must match item IDs.
func (c *Chunk) Validate() error {
	if c.Metadata.Dimensions <= 0 {
		return fmt.Errorf("%w: dimensions must be positive", ErrInvalidChunk)
	}
	if len(c.Metadata.GroupIDs) == 0 {
		return fmt.Errorf("%w: no group IDs", ErrInvalidChunk)
	}
	for key, item := range c.Patterns {
		if key != item.ID {
			return fmt.Errorf("%w: pattern key %q does not match item ID %q",
				ErrInvalidChunk, key, item.ID)
		}
		if err := item.Validate(c.Metadata.Dimensions); err != nil {
			return err
		}
	}
	for key, item := range c.Examples {
		if key != item.ID {
			return fmt.Errorf("%w: example key %q does not match item ID %q",
				ErrInvalidChunk, key, item.ID)
		}
		if item.ParentPatternID == "" {
			return fmt.Errorf("%w: example %s has no parent pattern", ErrInvalidChunk, key)
		}
		if err := item.Validate(c.Metadata.Dimensions); err != nil {
			return err
		}
	}
	return nil
}

// LastUpdated returns the most recent item update time in the chunk, or the
// zero time for an empty chunk.
func (c *Chunk) LastUpdated() time.Time {
	var latest time.Time
	for _, item := range c.Patterns {
		if item.LastUpdated.After(latest) {
			latest = item.LastUpdated
		}
	}
	for _, item := range c.Examples {
		if item.LastUpdated.After(latest) {
			latest = item.LastUpdated
		}
	}
	return latest
}
