// Package types provides shared type definitions for the embedding pipeline.
//
// This package defines the domain types passed between pipeline components:
// embedding items, chunks, the master index, run statistics, and the error
// taxonomy the retry and failure-handling logic keys on.
//
// # Core Types
//
// EmbeddingItem is one embedded pattern or example prompt:
//
//	item := &types.EmbeddingItem{
//	    ID:          "7-0-0",
//	    GroupID:     "7",
//	    Embedding:   vector,
//	    ContentHash: types.ContentHash(text),
//	    LastUpdated: time.Now().UTC(),
//	}
//
// Chunk is the unit of persistence: one JSON file per group ("paper"),
// holding all of that group's pattern and example embeddings plus metadata.
// A chunk is always replaced wholesale on disk, never patched in place.
//
// MasterIndex is derived from the full set of chunk files and maps every
// item ID to its owning group. It is regenerated on every run and never
// hand-edited.
//
// # Validation
//
// Chunks validate vector length and ID consistency at write time:
//
//	if err := chunk.Validate(); err != nil {
//	    return err
//	}
//
// # Content Hashing
//
// ContentHash is SHA-256 over the exact UTF-8 bytes submitted to the
// embedding provider, with no normalization. The hash is the cache key for
// change detection; any normalization drift would invalidate every chunk
// written by a previous run.
package types
