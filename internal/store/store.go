// Package store persists the last-known comment sequence per tracked item as
// a single keyed JSON document.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/geckyzz/nyaa-comments/internal/comment"
)

// Snapshot is the in-memory copy of the persisted state. It is loaded once at
// startup and written back exactly once at the end of a run; there is no
// incremental persistence, so a crash mid-run never corrupts the saved file.
type Snapshot struct {
	path   string
	data   map[string][]comment.Comment
	logger *zap.Logger
}

// Open loads the snapshot file at path. A missing or malformed file is
// treated as an empty snapshot, never an error.
func Open(path string, logger *zap.Logger) *Snapshot {
	s := &Snapshot{
		path:   path,
		data:   make(map[string][]comment.Comment),
		logger: logger,
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Snapshot file unreadable, starting empty",
				zap.String("path", path), zap.Error(err))
		}
		return s
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		logger.Warn("Snapshot file malformed, starting empty",
			zap.String("path", path), zap.Error(err))
		s.data = make(map[string][]comment.Comment)
	}
	return s
}

// Path returns the backing file path.
func (s *Snapshot) Path() string {
	return s.path
}

// Comments returns the stored sequence for an item id, nil when the item has
// never been observed.
func (s *Snapshot) Comments(id string) []comment.Comment {
	return s.data[id]
}

// Replace installs comments as the full stored sequence for an item id. The
// previous sequence is discarded, never merged.
func (s *Snapshot) Replace(id string, comments []comment.Comment) {
	s.data[id] = comments
}

// Len reports the number of tracked items with stored comments.
func (s *Snapshot) Len() int {
	return len(s.data)
}

// Save writes the snapshot back to its file in one atomic replace. Entries
// are key-sorted numerically so repeated saves of the same state are
// byte-identical.
func (s *Snapshot) Save() error {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, aerr := strconv.ParseInt(keys[i], 10, 64)
		b, berr := strconv.ParseInt(keys[j], 10, 64)
		if aerr != nil || berr != nil {
			return keys[i] < keys[j]
		}
		return a < b
	})

	buf := []byte{'{'}
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return fmt.Errorf("marshal snapshot key %q: %w", k, err)
		}
		val, err := json.Marshal(s.data[k])
		if err != nil {
			return fmt.Errorf("marshal snapshot entry %q: %w", k, err)
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, val...)
	}
	buf = append(buf, '}')

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o600); err != nil {
		return fmt.Errorf("write snapshot temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace snapshot file: %w", err)
	}
	s.logger.Info("Snapshot saved",
		zap.String("path", filepath.Clean(s.path)), zap.Int("items", len(s.data)))
	return nil
}
