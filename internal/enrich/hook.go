package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/glueous/reader/internal/document"
	"github.com/glueous/reader/internal/ocrcache"
)

// Session is the currently open document and its page states.
type Session struct {
	Doc      document.Document
	Path     string
	States   *StateTable
	OpenedAt time.Time
}

// Identity returns the document identity.
func (s *Session) Identity() document.Identity {
	return s.Doc.Identity()
}

// Key returns the page key of page n.
func (s *Session) Key(n int) document.PageKey {
	return document.PageKey{Doc: s.Doc.Identity(), Page: n}
}

// PageOutcome is the result of enriching one page.
type PageOutcome struct {
	Key   document.PageKey `json:"key"`
	State PageState        `json:"state"`
	Spans int              `json:"spans"`
	Err   error            `json:"-"`
}

// HookConfig configures a Hook.
type HookConfig struct {
	Opener    document.Opener
	Cache     *ocrcache.Store
	Processor *Processor
	Logger    *slog.Logger
}

// Hook wraps document open so cached text is replayed into pages before they
// are displayed, and owns every cache write for the open document.
type Hook struct {
	opener document.Opener
	cache  *ocrcache.Store
	proc   *Processor
	logger *slog.Logger

	mu      sync.RWMutex
	session *Session

	// work serializes page processing, cache writes and document resets.
	work sync.Mutex
}

// NewHook creates a lifecycle hook.
func NewHook(cfg HookConfig) *Hook {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Hook{
		opener: cfg.Opener,
		cache:  cfg.Cache,
		proc:   cfg.Processor,
		logger: logger.With("component", "hook"),
	}
}

// Processor returns the processor used for enrichment.
func (h *Hook) Processor() *Processor { return h.proc }

// Cache returns the cache store.
func (h *Hook) Cache() *ocrcache.Store { return h.cache }

// Session returns the open session or nil.
func (h *Hook) Session() *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.session
}

// Open opens the document at path, replays cached results into it and makes
// it the current session. A previously open document is closed.
func (h *Hook) Open(ctx context.Context, path string) (*Session, error) {
	if h.opener == nil {
		return nil, errors.New("no document opener configured")
	}
	doc, err := h.opener.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return h.Attach(ctx, doc, path)
}

// Attach makes an already open document the current session after replaying
// its cached results.
func (h *Hook) Attach(ctx context.Context, doc document.Document, path string) (*Session, error) {
	if !h.cache.Loaded() {
		if err := h.cache.Load(); err != nil {
			h.logger.Warn("cache unavailable, continuing without it", "error", err)
		}
	}

	sess := &Session{
		Doc:      doc,
		Path:     path,
		States:   NewStateTable(),
		OpenedAt: time.Now(),
	}

	h.work.Lock()
	replayed := h.replayLocked(sess)
	h.mu.Lock()
	prev := h.session
	h.session = sess
	h.mu.Unlock()
	if prev != nil && prev.Doc != doc {
		if err := prev.Doc.Close(); err != nil {
			h.logger.Warn("failed to close previous document", "doc", prev.Identity(), "error", err)
		}
	}
	h.work.Unlock()

	h.logger.Info("document opened", "doc", doc.Identity(), "pages", doc.PageCount(), "replayed", replayed)
	return sess, nil
}

// Close releases the current document.
func (h *Hook) Close() error {
	h.mu.Lock()
	sess := h.session
	h.session = nil
	h.mu.Unlock()
	if sess == nil {
		return nil
	}
	h.work.Lock()
	defer h.work.Unlock()
	return sess.Doc.Close()
}

// Replay re-injects cached text into the current document. Replaying is
// idempotent; it also applies a changed debug visibility.
func (h *Hook) Replay(ctx context.Context) (int, error) {
	sess := h.Session()
	if sess == nil {
		return 0, ErrNoDocument
	}
	h.work.Lock()
	defer h.work.Unlock()
	return h.replayLocked(sess), nil
}

func (h *Hook) replayLocked(sess *Session) int {
	replayed := 0
	for _, entry := range h.cache.Entries(sess.Identity()) {
		key := entry.Key
		if key.Page < 0 || key.Page >= sess.Doc.PageCount() {
			continue
		}
		switch entry.Status {
		case ocrcache.StatusDone:
			page, err := sess.Doc.Page(key.Page)
			if err == nil {
				err = h.proc.Inject(key, page, entry.Spans)
			}
			if err != nil {
				h.logger.Warn("failed to replay cached text", "doc", key.Doc, "page", key.Page, "error", err)
			} else {
				replayed++
			}
			if sess.States.Get(key) == StateUnscanned {
				sess.States.Restore(key, StateCached)
			}
		case ocrcache.StatusFailed:
			if sess.States.Get(key) == StateUnscanned {
				sess.States.Restore(key, StateFailedRetryable)
			}
		}
	}
	return replayed
}

// EnrichPage runs the processor on one page of sess and records the outcome.
// The page must be Unscanned. ErrStaleSession is returned, with nothing
// recorded, when sess is no longer the open document.
func (h *Hook) EnrichPage(ctx context.Context, sess *Session, key document.PageKey) (PageOutcome, error) {
	h.work.Lock()
	defer h.work.Unlock()
	return h.enrichLocked(ctx, sess, key)
}

func (h *Hook) enrichLocked(ctx context.Context, sess *Session, key document.PageKey) (PageOutcome, error) {
	if h.Session() != sess {
		return PageOutcome{Key: key}, ErrStaleSession
	}
	if err := sess.States.Transition(key, StateQueued); err != nil {
		return PageOutcome{}, err
	}
	if err := sess.States.Transition(key, StateProcessing); err != nil {
		return PageOutcome{}, err
	}

	page, err := sess.Doc.Page(key.Page)
	var spans []document.TextSpan
	if err != nil {
		err = &PageError{Key: key, Err: err}
	} else {
		spans, err = h.proc.Process(ctx, key, page)
	}
	return h.recordLocked(sess, key, spans, err)
}

// recordLocked writes the outcome of a Processing page. Outcomes for pages no
// longer Processing (invalidated meanwhile) are discarded.
func (h *Hook) recordLocked(sess *Session, key document.PageKey, spans []document.TextSpan, procErr error) (PageOutcome, error) {
	logger := h.logger.With("doc", key.Doc, "page", key.Page)

	if procErr != nil && !IsPageFailure(procErr) {
		sess.States.CompareAndSet(key, StateProcessing, StateUnscanned)
		return PageOutcome{Key: key, State: StateUnscanned}, procErr
	}

	if procErr != nil {
		if !sess.States.CompareAndSet(key, StateProcessing, StateFailedRetryable) {
			logger.Debug("discarding stale failure")
			return PageOutcome{Key: key, State: sess.States.Get(key)}, nil
		}
		if err := h.cache.Put(key, ocrcache.Entry{Status: ocrcache.StatusFailed}); err != nil {
			logger.Error("failed to persist page failure", "error", err)
		}
		logger.Info("page enrichment failed", "error", procErr)
		return PageOutcome{Key: key, State: StateFailedRetryable, Err: procErr}, nil
	}

	if !sess.States.CompareAndSet(key, StateProcessing, StateCached) {
		logger.Debug("discarding stale result")
		return PageOutcome{Key: key, State: sess.States.Get(key)}, nil
	}
	if err := h.cache.Put(key, ocrcache.Entry{Status: ocrcache.StatusDone, Spans: spans}); err != nil {
		logger.Error("failed to persist page result", "error", err)
	}
	logger.Info("page enriched", "spans", len(spans))
	return PageOutcome{Key: key, State: StateCached, Spans: len(spans)}, nil
}

// commitResult records a result produced by a pool worker. The text is
// injected here so only one goroutine ever writes text layers and the cache.
func (h *Hook) commitResult(res PoolResult) (PageOutcome, bool) {
	if res.Skipped {
		return PageOutcome{}, false
	}
	sess := res.Unit.session
	key := res.Unit.Key

	h.work.Lock()
	defer h.work.Unlock()

	if h.Session() != sess {
		h.logger.Debug("discarding result for closed document", "doc", key.Doc, "page", key.Page)
		return PageOutcome{}, false
	}
	if sess.States.Get(key) != StateProcessing {
		h.logger.Debug("discarding stale result", "doc", key.Doc, "page", key.Page)
		return PageOutcome{}, false
	}

	err := res.Err
	if err == nil {
		var page document.Page
		page, err = sess.Doc.Page(key.Page)
		if err == nil {
			err = h.proc.Inject(key, page, res.Spans)
		}
	}
	out, recErr := h.recordLocked(sess, key, res.Spans, err)
	if recErr != nil {
		return out, false
	}
	return out, true
}

// RerunPage discards the cached result of page n, resets the document and
// enriches the page immediately, regardless of the automatic mode. A page a
// pool worker holds is reported as ErrPageBusy and left untouched.
func (h *Hook) RerunPage(ctx context.Context, n int) (PageOutcome, error) {
	sess := h.Session()
	if sess == nil {
		return PageOutcome{}, ErrNoDocument
	}
	if n < 0 || n >= sess.Doc.PageCount() {
		return PageOutcome{}, fmt.Errorf("%w: %d of %d", document.ErrPageOutOfRange, n, sess.Doc.PageCount())
	}
	key := sess.Key(n)

	h.work.Lock()
	defer h.work.Unlock()

	if h.Session() != sess {
		return PageOutcome{Key: key}, ErrStaleSession
	}
	if sess.States.Get(key) == StateProcessing {
		return PageOutcome{Key: key, State: StateProcessing}, ErrPageBusy
	}
	if err := h.cache.Delete(key); err != nil {
		h.logger.Error("failed to delete cache entry", "doc", key.Doc, "page", key.Page, "error", err)
	}
	sess.States.Invalidate(key)
	if err := h.resetLocked(ctx, sess); err != nil {
		return PageOutcome{}, err
	}
	return h.enrichLocked(ctx, sess, key)
}

// RerunDocument discards every cached result of the current document and
// resets it. Pages are enriched again only by the driver.
func (h *Hook) RerunDocument(ctx context.Context) error {
	sess := h.Session()
	if sess == nil {
		return ErrNoDocument
	}

	h.work.Lock()
	defer h.work.Unlock()

	if h.Session() != sess {
		return ErrStaleSession
	}
	if err := h.cache.DeleteAll(sess.Identity()); err != nil {
		h.logger.Error("failed to delete cache entries", "doc", sess.Identity(), "error", err)
	}
	sess.States.Reset()
	if err := h.resetLocked(ctx, sess); err != nil {
		return err
	}
	h.logger.Info("document invalidated", "doc", sess.Identity())
	return nil
}

// resetLocked reopens the document and replays whatever is still cached.
func (h *Hook) resetLocked(ctx context.Context, sess *Session) error {
	if err := sess.Doc.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset document: %w", err)
	}
	h.replayLocked(sess)
	return nil
}
