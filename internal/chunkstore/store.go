// Package chunkstore persists one JSON chunk file per group.
//
// Writes are atomic: the chunk is marshaled to a temporary file in the same
// directory and renamed into place, so a crash mid-write can never leave a
// torn file for a later load to misinterpret. Loads treat a corrupt file as
// a cold cache rather than a fatal error; the worst case is recomputing one
// group's embeddings.
package chunkstore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/timhaintz/promptembed/pkg/types"
)

const (
	chunkPrefix = "paper-"
	chunkSuffix = ".json"
)

// Store reads and writes chunk files under a single output directory.
type Store struct {
	dir string
	log *slog.Logger
}

// New creates a store rooted at dir. The directory is created on first
// save, not here, so read-only commands can point at a missing directory.
func New(dir string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{dir: dir, log: log.With("component", "chunkstore")}
}

// Dir returns the store's output directory.
func (s *Store) Dir() string {
	return s.dir
}

// FileName returns the deterministic chunk file name for a group.
func FileName(groupID string) string {
	return chunkPrefix + groupID + chunkSuffix
}

// Path returns the chunk file path for a group.
func (s *Store) Path(groupID string) string {
	return filepath.Join(s.dir, FileName(groupID))
}

// Load returns the existing chunk for a group, or nil when no usable chunk
// exists. A corrupt or invalid file is logged and treated exactly like a
// missing one: forward progress beats preserving a cache nobody can read.
func (s *Store) Load(groupID string) (*types.Chunk, error) {
	data, err := os.ReadFile(s.Path(groupID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read chunk %s: %w", groupID, err)
	}

	var chunk types.Chunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		s.log.Warn("corrupt chunk treated as cold cache", "group", groupID, "error", err)
		return nil, nil
	}
	if err := chunk.Validate(); err != nil {
		s.log.Warn("invalid chunk treated as cold cache", "group", groupID, "error", err)
		return nil, nil
	}
	return &chunk, nil
}

// Save writes the complete chunk atomically. The chunk is validated first;
// the vector-length invariant is enforced here, at write time.
func (s *Store) Save(groupID string, chunk *types.Chunk) error {
	if err := chunk.Validate(); err != nil {
		return fmt.Errorf("chunk %s failed validation: %w", groupID, err)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	data, err := json.MarshalIndent(chunk, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal chunk %s: %w", groupID, err)
	}

	return s.writeAtomic(s.Path(groupID), data)
}

// GroupIDs lists the groups with a chunk file on disk, sorted.
func (s *Store) GroupIDs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read output dir: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, chunkPrefix) || !strings.HasSuffix(name, chunkSuffix) {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(name, chunkPrefix), chunkSuffix)
		if id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// WriteArtifact atomically writes a derived JSON artifact (master index,
// statistics) into the output directory.
func (s *Store) WriteArtifact(name string, v any) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	return s.writeAtomic(filepath.Join(s.dir, name), data)
}

// writeAtomic writes data to a temp file in the target directory and
// renames it into place.
func (s *Store) writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
