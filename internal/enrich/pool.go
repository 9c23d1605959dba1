package enrich

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/glueous/reader/internal/document"
)

// PoolResult is the outcome of one work unit, sent back to the driver.
type PoolResult struct {
	Unit  *WorkUnit
	Spans []document.TextSpan
	Err   error
	// Skipped is set when the page was invalidated before a worker took it.
	Skipped bool
}

// PoolStatus reports pool activity.
type PoolStatus struct {
	Workers  int                `json:"workers"`
	InFlight int                `json:"in_flight"`
	Queue    PriorityQueueStats `json:"queue"`
}

// PoolConfig configures a Pool.
type PoolConfig struct {
	Workers   int
	Processor *Processor
	Logger    *slog.Logger
}

// Pool recognizes pages on a fixed number of worker goroutines. Workers only
// run recognition; results go back over Results so that the driver remains
// the single writer of cache entries and text layers.
type Pool struct {
	workers   int
	processor *Processor
	logger    *slog.Logger

	queue   *PriorityQueue
	results chan PoolResult

	inFlight atomic.Int32
	wg       sync.WaitGroup
	started  atomic.Bool
}

// NewPool creates a pool. Call Start to launch workers.
func NewPool(cfg PoolConfig) *Pool {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		workers:   workers,
		processor: cfg.Processor,
		logger:    logger.With("component", "pool", "workers", workers),
		queue:     NewPriorityQueue(),
		results:   make(chan PoolResult, workers*2),
	}
}

// Start launches the workers. They exit when ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.logger.Debug("pool started")
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Submit queues a unit for recognition.
func (p *Pool) Submit(unit *WorkUnit) error {
	return p.queue.Push(unit)
}

// Results delivers completed units.
func (p *Pool) Results() <-chan PoolResult {
	return p.results
}

// Capacity is the number of units that can be submitted without exceeding
// one queued or running unit per worker.
func (p *Pool) Capacity() int {
	free := p.workers - int(p.inFlight.Load()) - p.queue.Len()
	if free < 0 {
		return 0
	}
	return free
}

// Status returns current pool activity.
func (p *Pool) Status() PoolStatus {
	return PoolStatus{
		Workers:  p.workers,
		InFlight: int(p.inFlight.Load()),
		Queue:    p.queue.Stats(),
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		unit := p.queue.Pop(ctx.Done())
		if unit == nil {
			return
		}

		p.inFlight.Add(1)
		res := p.process(ctx, unit)
		p.inFlight.Add(-1)

		select {
		case p.results <- res:
		case <-ctx.Done():
			return
		}
		p.logger.Debug("worker completed unit", "worker_id", id, "unit_id", unit.ID, "page", unit.Key.Page, "skipped", res.Skipped)
	}
}

func (p *Pool) process(ctx context.Context, unit *WorkUnit) PoolResult {
	// The page may have been invalidated while it sat in the queue.
	if !unit.session.States.CompareAndSet(unit.Key, StateQueued, StateProcessing) {
		return PoolResult{Unit: unit, Skipped: true}
	}
	spans, err := p.processor.Recognize(ctx, unit.Key, unit.Page)
	return PoolResult{Unit: unit, Spans: spans, Err: err}
}
