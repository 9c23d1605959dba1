// Package settings persists the reader's durable key/value data file.
//
// Each top-level key is a section owned by one component (for example the
// recognition cache under "ocr_cache"). Sections are stored as raw JSON so
// owners decode and validate their own shape.
package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
)

// FileName is the default data file name.
const FileName = "data.json"

// Store is a JSON-file backed section store. Safe for concurrent use.
type Store struct {
	mu sync.Mutex
	// flushMu serializes Flush from snapshot to rename.
	flushMu  sync.Mutex
	path     string
	logger   *slog.Logger
	sections map[string]json.RawMessage
	loaded   bool
}

// New creates a store for the file at path. Nothing is read until Load.
func New(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:     path,
		logger:   logger,
		sections: make(map[string]json.RawMessage),
	}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the data file. A missing file yields an empty store.
// Unreadable or unparseable content is logged and treated as empty so
// startup proceeds; the file is overwritten on the next Flush.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sections = make(map[string]json.RawMessage)
	s.loaded = true

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		s.logger.Warn("data file is unreadable, starting empty", "path", s.path, "error", err)
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	var sections map[string]json.RawMessage
	if err := json.Unmarshal(data, &sections); err != nil {
		s.logger.Warn("data file is corrupt, starting empty", "path", s.path, "error", err)
		return nil
	}
	if sections != nil {
		s.sections = sections
	}
	return nil
}

// Get returns the raw JSON of a section.
func (s *Store) Get(key string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.sections[key]
	if !ok {
		return nil, false
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out, true
}

// Set replaces a section with the JSON encoding of v. It does not flush.
func (s *Store) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode section %q: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections[key] = raw
	return nil
}

// Delete removes a section. It does not flush.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sections, key)
}

// Keys lists section names in sorted order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.sections))
	for k := range s.sections {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Flush writes all sections to disk atomically (temp file + rename).
// Transient filesystem errors are retried a few times.
func (s *Store) Flush() error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	data, err := json.MarshalIndent(s.sections, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode data file: %w", err)
	}

	return retry.Do(
		func() error { return s.writeFile(data) },
		retry.Attempts(3),
		retry.Delay(50*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Debug("retrying data file write", "attempt", n+1, "error", err)
		}),
	)
}

func (s *Store) writeFile(data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".data-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace data file: %w", err)
	}
	return nil
}
