// Package ocrcache persists page recognition results so each page of a
// document is recognized at most once across restarts.
package ocrcache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/glueous/reader/internal/document"
)

// SectionKey is the settings section holding the cache.
const SectionKey = "ocr_cache"

// Status is the outcome recorded for a page.
type Status string

const (
	StatusDone   Status = "done"
	StatusFailed Status = "failed"
)

// Entry is the persisted enrichment result for one page.
type Entry struct {
	Key    document.PageKey
	Spans  []document.TextSpan
	Status Status
}

// Backend is the durable section store backing the cache.
type Backend interface {
	Get(key string) (json.RawMessage, bool)
	Set(key string, v any) error
	Flush() error
}

type record struct {
	Status Status              `json:"status"`
	Spans  []document.TextSpan `json:"spans"`
}

const sectionSchema = `{
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "propertyNames": {"pattern": "^[0-9]+$"},
    "additionalProperties": {
      "type": "object",
      "required": ["status"],
      "properties": {
        "status": {"enum": ["done", "failed"]},
        "spans": {
          "type": ["array", "null"],
          "items": {
            "type": "object",
            "required": ["text", "bbox"],
            "properties": {
              "text": {"type": "string"},
              "bbox": {"type": "array", "items": {"type": "number"}, "minItems": 4, "maxItems": 4},
              "confidence": {"type": "number"}
            }
          }
        }
      }
    }
  }
}`

var schema = jsonschema.MustCompileString("ocr_cache.json", sectionSchema)

// Store maps page keys to entries. Every mutation is written through to the
// backend. Safe for concurrent use.
type Store struct {
	mu sync.RWMutex
	// flushMu orders snapshot and write so the newest snapshot lands last.
	flushMu sync.Mutex
	backend Backend
	logger  *slog.Logger
	entries map[document.Identity]map[int]Entry
	loaded  bool
}

// New creates a cache over backend. Call Load before use.
func New(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend: backend,
		logger:  logger.With("component", "ocrcache"),
		entries: make(map[document.Identity]map[int]Entry),
	}
}

// Load hydrates the cache from the backend. Invalid content is logged and
// replaced by an empty cache; the next flush overwrites it.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[document.Identity]map[int]Entry)
	s.loaded = true

	raw, ok := s.backend.Get(SectionKey)
	if !ok {
		return nil
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		s.logger.Warn("cache section unreadable, starting empty", "error", err)
		return nil
	}
	if err := schema.Validate(generic); err != nil {
		s.logger.Warn("cache section invalid, starting empty", "error", err)
		return nil
	}

	var persisted map[string]map[string]record
	if err := json.Unmarshal(raw, &persisted); err != nil {
		s.logger.Warn("cache section undecodable, starting empty", "error", err)
		return nil
	}

	for doc, pages := range persisted {
		id := document.Identity(doc)
		for idx, rec := range pages {
			n, err := strconv.Atoi(idx)
			if err != nil {
				continue
			}
			s.putLocked(Entry{
				Key:    document.PageKey{Doc: id, Page: n},
				Spans:  rec.Spans,
				Status: rec.Status,
			})
		}
	}
	s.logger.Debug("cache loaded", "documents", len(s.entries))
	return nil
}

// Loaded reports whether Load has run.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Get returns the entry for key.
func (s *Store) Get(key document.PageKey) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key.Doc][key.Page]
	if !ok {
		return Entry{}, false
	}
	e.Spans = append([]document.TextSpan(nil), e.Spans...)
	return e, true
}

// Put stores entry under key, replacing any previous entry, and flushes.
func (s *Store) Put(key document.PageKey, entry Entry) error {
	if entry.Status != StatusDone && entry.Status != StatusFailed {
		return fmt.Errorf("invalid cache status %q", entry.Status)
	}
	entry.Key = key
	entry.Spans = append([]document.TextSpan(nil), entry.Spans...)

	s.mu.Lock()
	s.putLocked(entry)
	s.mu.Unlock()
	return s.Flush()
}

func (s *Store) putLocked(e Entry) {
	pages, ok := s.entries[e.Key.Doc]
	if !ok {
		pages = make(map[int]Entry)
		s.entries[e.Key.Doc] = pages
	}
	pages[e.Key.Page] = e
}

// Delete removes the entry for key and flushes.
func (s *Store) Delete(key document.PageKey) error {
	s.mu.Lock()
	pages, ok := s.entries[key.Doc]
	if ok {
		delete(pages, key.Page)
		if len(pages) == 0 {
			delete(s.entries, key.Doc)
		}
	}
	s.mu.Unlock()
	return s.Flush()
}

// DeleteAll removes every entry of doc and flushes.
func (s *Store) DeleteAll(doc document.Identity) error {
	s.mu.Lock()
	delete(s.entries, doc)
	s.mu.Unlock()
	return s.Flush()
}

// Entries returns the entries of doc ordered by page.
func (s *Store) Entries(doc document.Identity) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pages := s.entries[doc]
	out := make([]Entry, 0, len(pages))
	for _, e := range pages {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Page < out[j].Key.Page })
	return out
}

// Documents lists the identities that have entries.
func (s *Store) Documents() []document.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]document.Identity, 0, len(s.entries))
	for id := range s.entries {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Flush writes the cache section to the backend and persists it.
func (s *Store) Flush() error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.RLock()
	section := make(map[string]map[string]record, len(s.entries))
	for doc, pages := range s.entries {
		m := make(map[string]record, len(pages))
		for n, e := range pages {
			spans := e.Spans
			if spans == nil {
				spans = []document.TextSpan{}
			}
			m[strconv.Itoa(n)] = record{Status: e.Status, Spans: spans}
		}
		section[string(doc)] = m
	}
	s.mu.RUnlock()

	if err := s.backend.Set(SectionKey, section); err != nil {
		return fmt.Errorf("failed to stage cache: %w", err)
	}
	if err := s.backend.Flush(); err != nil {
		return fmt.Errorf("failed to flush cache: %w", err)
	}
	return nil
}
