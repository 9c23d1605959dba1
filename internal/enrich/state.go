package enrich

import (
	"fmt"
	"sync"

	"github.com/glueous/reader/internal/document"
)

// PageState is the in-memory processing state of a page. It is not persisted;
// it is rebuilt from the cache when a document opens.
type PageState int

const (
	StateUnscanned PageState = iota
	StateQueued
	StateProcessing
	StateCached
	StateFailedRetryable
)

func (s PageState) String() string {
	switch s {
	case StateUnscanned:
		return "unscanned"
	case StateQueued:
		return "queued"
	case StateProcessing:
		return "processing"
	case StateCached:
		return "cached"
	case StateFailedRetryable:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s PageState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *PageState) UnmarshalText(text []byte) error {
	for st := StateUnscanned; st <= StateFailedRetryable; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown page state %q", text)
}

var transitions = map[PageState][]PageState{
	StateUnscanned:       {StateQueued},
	StateQueued:          {StateProcessing},
	StateProcessing:      {StateCached, StateFailedRetryable},
	StateCached:          {StateUnscanned},
	StateFailedRetryable: {StateUnscanned},
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to PageState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// StateTable tracks page states of one open document. Pages never touched
// are Unscanned. Safe for concurrent use.
type StateTable struct {
	mu     sync.RWMutex
	states map[document.PageKey]PageState
}

// NewStateTable creates an empty table.
func NewStateTable() *StateTable {
	return &StateTable{states: make(map[document.PageKey]PageState)}
}

// Get returns the state of key.
func (t *StateTable) Get(key document.PageKey) PageState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.states[key]
}

// Transition moves key to the given state, enforcing the page lifecycle.
func (t *StateTable) Transition(key document.PageKey, to PageState) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	from := t.states[key]
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, key, from, to)
	}
	t.set(key, to)
	return nil
}

// CompareAndSet moves key to `to` only if it is currently `from`.
func (t *StateTable) CompareAndSet(key document.PageKey, from, to PageState) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.states[key] != from {
		return false
	}
	t.set(key, to)
	return true
}

// Restore sets the state recovered from the cache at document open.
func (t *StateTable) Restore(key document.PageKey, s PageState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.set(key, s)
}

// Invalidate returns key to Unscanned from any state.
func (t *StateTable) Invalidate(key document.PageKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, key)
}

// Reset returns every page to Unscanned.
func (t *StateTable) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states = make(map[document.PageKey]PageState)
}

// Counts tallies the states of pages 0..pageCount-1 of doc.
func (t *StateTable) Counts(doc document.Identity, pageCount int) map[PageState]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	counts := make(map[PageState]int)
	for i := 0; i < pageCount; i++ {
		counts[t.states[document.PageKey{Doc: doc, Page: i}]]++
	}
	return counts
}

func (t *StateTable) set(key document.PageKey, s PageState) {
	if s == StateUnscanned {
		delete(t.states, key)
		return
	}
	t.states[key] = s
}
