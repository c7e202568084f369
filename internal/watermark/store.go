// Package watermark persists the per-user "last processed" timestamp that
// bounds catch-up scans. The store lives in a local JSON file so the
// watermark survives process restarts; advances are monotonic.
package watermark

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Store is a file-backed watermark map, safe for concurrent use from
// multiple adapter callbacks.
type Store struct {
	mu    sync.Mutex
	path  string
	marks map[string]time.Time
}

// Open loads the watermark file at path, creating an empty store if the
// file does not exist yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path, marks: make(map[string]time.Time)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Open: reading %q: %w", path, err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.marks); err != nil {
		return nil, fmt.Errorf("Open: decoding %q: %w", path, err)
	}
	return s, nil
}

// Get returns the user's watermark, zero if the user has none yet.
func (s *Store) Get(userID string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marks[userID]
}

// Advance moves the user's watermark to max(current, ts) and persists the
// store. Advancing to an older timestamp is a no-op, which is what keeps
// the watermark monotonic no matter how adapters interleave.
func (s *Store) Advance(userID string, ts time.Time) error {
	if ts.IsZero() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.marks[userID]
	if !ts.After(current) {
		return nil
	}
	s.marks[userID] = ts

	if err := s.flushLocked(); err != nil {
		// Roll back so a retried Advance writes again.
		s.marks[userID] = current
		return fmt.Errorf("Advance: %w", err)
	}
	return nil
}

// flushLocked writes the map via a temp file and atomic rename so a crash
// mid-write never leaves a truncated watermark file.
func (s *Store) flushLocked() error {
	data, err := json.MarshalIndent(s.marks, "", "  ")
	if err != nil {
		return fmt.Errorf("flush: encoding: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".watermarks-*")
	if err != nil {
		return fmt.Errorf("flush: temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("flush: writing: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("flush: closing: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("flush: renaming: %w", err)
	}
	return nil
}
