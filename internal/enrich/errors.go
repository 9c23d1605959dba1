package enrich

import (
	"errors"
	"fmt"

	"github.com/glueous/reader/internal/document"
)

var (
	// ErrTickInProgress is returned when Tick is called while a tick runs.
	ErrTickInProgress = errors.New("enrichment tick already in progress")
	// ErrNoText means no image on the page produced usable text.
	ErrNoText = errors.New("no usable text recognized")
	// ErrNoDocument is returned by commands that need an open document.
	ErrNoDocument = errors.New("no document open")
	// ErrInvalidTransition is returned for an illegal page state change.
	ErrInvalidTransition = errors.New("invalid page state transition")
	// ErrStaleSession means the document was closed or replaced while work on it was pending.
	ErrStaleSession = errors.New("document is no longer open")
	// ErrPageBusy is returned when a rerun targets a page a worker is processing.
	ErrPageBusy = errors.New("page is being processed")
)

// PageError reports a page-level failure.
type PageError struct {
	Key document.PageKey
	Err error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %s: %v", e.Key, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }
