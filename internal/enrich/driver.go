package enrich

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/glueous/reader/internal/document"
)

// DefaultTickInterval is the default host timer period.
const DefaultTickInterval = 500 * time.Millisecond

// View is the host's viewing state, as zero-based page indices.
type View struct {
	// Visible pages, nearest to the viewport first.
	Visible []int `json:"visible"`
	// Selectable pages are reachable by scrolling.
	Selectable []int `json:"selectable"`
	Current    int   `json:"current"`
}

// ViewSource supplies the current viewing state.
type ViewSource interface {
	View() View
}

// ViewFunc adapts a function to ViewSource.
type ViewFunc func() View

func (f ViewFunc) View() View { return f() }

// DriverState is Idle between ticks and Ticking during one.
type DriverState int

const (
	DriverIdle DriverState = iota
	DriverTicking
)

func (s DriverState) String() string {
	if s == DriverTicking {
		return "ticking"
	}
	return "idle"
}

// TickStatus describes what a tick did.
type TickStatus string

const (
	TickDisabled   TickStatus = "disabled"
	TickIdle       TickStatus = "idle"
	TickProcessed  TickStatus = "processed"
	TickDispatched TickStatus = "dispatched"
	TickSkipped    TickStatus = "skipped"
)

// TickResult reports the work done by one tick.
type TickResult struct {
	Status TickStatus       `json:"status"`
	Key    document.PageKey `json:"key,omitempty"`
	State  PageState        `json:"state,omitempty"`
	Spans  int              `json:"spans,omitempty"`
	// Remaining counts pages still waiting after this tick.
	Remaining  int `json:"remaining"`
	Dispatched int `json:"dispatched,omitempty"`
	Committed  int `json:"committed,omitempty"`
}

// DriverStats are cumulative driver counters.
type DriverStats struct {
	State     string      `json:"state"`
	Enabled   bool        `json:"enabled"`
	Interval  string      `json:"interval"`
	Ticks     int64       `json:"ticks"`
	Enriched  int64       `json:"enriched"`
	Failed    int64       `json:"failed"`
	Rejected  int64       `json:"rejected"`
	Pool      *PoolStatus `json:"pool,omitempty"`
	LastError string      `json:"last_error,omitempty"`
}

// DriverConfig configures a Driver.
type DriverConfig struct {
	Hook    *Hook
	View    ViewSource
	Enabled bool
	// Interval is the period used by Run.
	Interval time.Duration
	// Workers > 1 recognizes pages on a worker pool instead of inline.
	Workers int
	Logger  *slog.Logger
}

// Driver is the recurring enrichment task. Each Tick processes at most one
// page inline, or with a worker pool dispatches up to the pool's free
// capacity and commits finished results.
type Driver struct {
	hook   *Hook
	view   ViewSource
	pool   *Pool
	logger *slog.Logger

	enabled  atomic.Bool
	ticking  atomic.Bool
	interval atomic.Int64

	ticks    atomic.Int64
	enriched atomic.Int64
	failed   atomic.Int64
	rejected atomic.Int64
	lastErr  atomic.Value
}

// NewDriver creates a driver.
func NewDriver(cfg DriverConfig) *Driver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	d := &Driver{
		hook:   cfg.Hook,
		view:   cfg.View,
		logger: logger.With("component", "driver"),
	}
	if cfg.Workers > 1 {
		d.pool = NewPool(PoolConfig{Workers: cfg.Workers, Processor: cfg.Hook.Processor(), Logger: logger})
	}
	d.enabled.Store(cfg.Enabled)
	d.SetInterval(cfg.Interval)
	return d
}

// SetEnabled turns automatic enrichment on or off from the next tick.
func (d *Driver) SetEnabled(on bool) {
	if d.enabled.Swap(on) != on {
		d.logger.Info("automatic enrichment changed", "enabled", on)
	}
}

// Enabled reports whether automatic enrichment is on.
func (d *Driver) Enabled() bool { return d.enabled.Load() }

// SetInterval changes the Run period. Non-positive values select the default.
func (d *Driver) SetInterval(iv time.Duration) {
	if iv <= 0 {
		iv = DefaultTickInterval
	}
	d.interval.Store(int64(iv))
}

// Interval returns the Run period.
func (d *Driver) Interval() time.Duration { return time.Duration(d.interval.Load()) }

// State reports whether a tick is running.
func (d *Driver) State() DriverState {
	if d.ticking.Load() {
		return DriverTicking
	}
	return DriverIdle
}

// Stats returns cumulative counters.
func (d *Driver) Stats() DriverStats {
	s := DriverStats{
		State:    d.State().String(),
		Enabled:  d.Enabled(),
		Interval: d.Interval().String(),
		Ticks:    d.ticks.Load(),
		Enriched: d.enriched.Load(),
		Failed:   d.failed.Load(),
		Rejected: d.rejected.Load(),
	}
	if d.pool != nil {
		ps := d.pool.Status()
		s.Pool = &ps
	}
	if v, ok := d.lastErr.Load().(string); ok {
		s.LastError = v
	}
	return s
}

// Start launches pool workers, if any. Run calls it.
func (d *Driver) Start(ctx context.Context) {
	if d.pool != nil {
		d.pool.Start(ctx)
	}
}

// Tick performs one unit of enrichment work. It returns ErrTickInProgress if
// another tick is running.
func (d *Driver) Tick(ctx context.Context) (TickResult, error) {
	if !d.ticking.CompareAndSwap(false, true) {
		d.rejected.Add(1)
		return TickResult{}, ErrTickInProgress
	}
	defer d.ticking.Store(false)
	d.ticks.Add(1)

	// Finished pool work is committed even while disabled.
	committed := 0
	if d.pool != nil {
		committed = d.drain()
	}

	if !d.enabled.Load() {
		return TickResult{Status: TickDisabled, Committed: committed}, nil
	}

	sess := d.hook.Session()
	if sess == nil {
		return TickResult{Status: TickIdle, Committed: committed}, nil
	}

	v := d.view.View()
	plan := Plan(pageKeys(sess, v.Visible), pageKeys(sess, v.Selectable), sess.States.Get)
	if len(plan) == 0 {
		return TickResult{Status: TickIdle, Committed: committed}, nil
	}

	if err := d.hook.Processor().Ready(); err != nil {
		d.enabled.Store(false)
		d.lastErr.Store(err.Error())
		d.logger.Error("recognition engine unavailable, automatic enrichment disabled", "engine", d.hook.Processor().EngineName(), "error", err)
		return TickResult{Status: TickDisabled, Committed: committed}, nil
	}

	if d.pool != nil {
		res := d.dispatch(sess, plan)
		res.Committed = committed
		return res, nil
	}

	key := plan[0].Key
	out, err := d.hook.EnrichPage(ctx, sess, key)
	if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrStaleSession) {
		// Another command handled the page or replaced the document since it was planned.
		return TickResult{Status: TickSkipped, Key: key, Remaining: len(plan) - 1}, nil
	}
	if err != nil {
		d.lastErr.Store(err.Error())
		return TickResult{Key: key}, err
	}
	d.count(out)
	return TickResult{
		Status:    TickProcessed,
		Key:       key,
		State:     out.State,
		Spans:     out.Spans,
		Remaining: len(plan) - 1,
	}, nil
}

func (d *Driver) dispatch(sess *Session, plan []Candidate) TickResult {
	n := min(d.pool.Capacity(), len(plan))
	dispatched := 0
	for _, c := range plan[:n] {
		page, err := sess.Doc.Page(c.Key.Page)
		if err != nil {
			d.logger.Warn("cannot dispatch page", "doc", c.Key.Doc, "page", c.Key.Page, "error", err)
			continue
		}
		if err := sess.States.Transition(c.Key, StateQueued); err != nil {
			continue
		}
		unit := &WorkUnit{
			ID:       uuid.NewString(),
			Key:      c.Key,
			Priority: PriorityForTier(c.Tier),
			Page:     page,
			session:  sess,
		}
		if err := d.pool.Submit(unit); err != nil {
			sess.States.Invalidate(c.Key)
			continue
		}
		dispatched++
	}
	return TickResult{Status: TickDispatched, Dispatched: dispatched, Remaining: len(plan) - dispatched}
}

// drain commits every finished pool result without blocking.
func (d *Driver) drain() int {
	committed := 0
	for {
		select {
		case res := <-d.pool.Results():
			if out, ok := d.hook.commitResult(res); ok {
				d.count(out)
				committed++
			}
		default:
			return committed
		}
	}
}

func (d *Driver) count(out PageOutcome) {
	switch out.State {
	case StateCached:
		d.enriched.Add(1)
	case StateFailedRetryable:
		d.failed.Add(1)
		if out.Err != nil {
			d.lastErr.Store(out.Err.Error())
		}
	}
}

// Pending reports whether the open document has pages queued or processing.
func (d *Driver) Pending() bool {
	sess := d.hook.Session()
	if sess == nil {
		return false
	}
	counts := sess.States.Counts(sess.Identity(), sess.Doc.PageCount())
	return counts[StateQueued]+counts[StateProcessing] > 0
}

// Run invokes Tick every Interval until ctx is done. Interval changes take
// effect after the next tick.
func (d *Driver) Run(ctx context.Context) error {
	d.Start(ctx)
	if d.pool != nil {
		defer d.pool.Wait()
	}

	interval := d.Interval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.logger.Info("driver started", "interval", interval, "enabled", d.Enabled())
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("driver stopping")
			return nil
		case <-ticker.C:
			if _, err := d.Tick(ctx); err != nil && !errors.Is(err, ErrTickInProgress) && ctx.Err() == nil {
				d.logger.Warn("tick failed", "error", err)
			}
			if iv := d.Interval(); iv != interval {
				interval = iv
				ticker.Reset(iv)
			}
		}
	}
}

// RunUntilIdle ticks until no page of the current view needs work and the
// pool has nothing outstanding. Pool mode sleeps pause between ticks.
func (d *Driver) RunUntilIdle(ctx context.Context, pause time.Duration) error {
	d.Start(ctx)
	for {
		res, err := d.Tick(ctx)
		if err != nil {
			return err
		}
		switch res.Status {
		case TickDisabled:
			return nil
		case TickIdle:
			if !d.Pending() {
				return nil
			}
		}
		if d.pool != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pause):
			}
		}
	}
}

func pageKeys(sess *Session, pages []int) []document.PageKey {
	n := sess.Doc.PageCount()
	keys := make([]document.PageKey, 0, len(pages))
	for _, p := range pages {
		if p < 0 || p >= n {
			continue
		}
		keys = append(keys, sess.Key(p))
	}
	return keys
}
