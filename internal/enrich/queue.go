package enrich

import (
	"container/heap"
	"errors"
	"sync"

	"github.com/glueous/reader/internal/document"
)

// ErrNilWorkUnit is returned when attempting to push a nil work unit.
var ErrNilWorkUnit = errors.New("cannot push nil work unit")

// Priority levels for work units. Higher values are processed first.
const (
	PrioritySelectable = 10
	PriorityVisible    = 20
)

// PriorityForTier maps a scheduler tier to a queue priority.
func PriorityForTier(t Tier) int {
	if t == TierVisible {
		return PriorityVisible
	}
	return PrioritySelectable
}

// WorkUnit is one page handed to the worker pool.
type WorkUnit struct {
	ID       string
	Key      document.PageKey
	Priority int
	Page     document.Page
	// session identifies the open document the unit was scheduled for.
	session *Session
}

// PriorityQueue is a thread-safe priority queue of work units.
// Equal priorities are dequeued in FIFO order.
type PriorityQueue struct {
	mu     sync.Mutex
	items  workUnitHeap
	seq    uint64
	notify chan struct{}
}

// NewPriorityQueue creates an empty queue.
func NewPriorityQueue() *PriorityQueue {
	pq := &PriorityQueue{
		items:  make(workUnitHeap, 0),
		notify: make(chan struct{}, 1),
	}
	heap.Init(&pq.items)
	return pq
}

// Push adds a work unit to the queue.
func (pq *PriorityQueue) Push(unit *WorkUnit) error {
	if unit == nil {
		return ErrNilWorkUnit
	}

	pq.mu.Lock()
	pq.seq++
	heap.Push(&pq.items, &workUnitItem{unit: unit, seq: pq.seq})
	pq.mu.Unlock()

	select {
	case pq.notify <- struct{}{}:
	default:
	}
	return nil
}

// Pop removes the highest priority unit, blocking until one is available.
// Returns nil once done is closed.
func (pq *PriorityQueue) Pop(done <-chan struct{}) *WorkUnit {
	for {
		if unit := pq.TryPop(); unit != nil {
			// Wake another waiter if more work remains.
			if pq.Len() > 0 {
				select {
				case pq.notify <- struct{}{}:
				default:
				}
			}
			return unit
		}
		select {
		case <-done:
			return nil
		case <-pq.notify:
		}
	}
}

// TryPop pops without blocking. Returns nil if the queue is empty.
func (pq *PriorityQueue) TryPop() *WorkUnit {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	if pq.items.Len() == 0 {
		return nil
	}
	return heap.Pop(&pq.items).(*workUnitItem).unit
}

// Len returns the number of queued units.
func (pq *PriorityQueue) Len() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return pq.items.Len()
}

// Stats returns queue depth by priority level.
func (pq *PriorityQueue) Stats() PriorityQueueStats {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	stats := PriorityQueueStats{Total: pq.items.Len()}
	for _, item := range pq.items {
		if item.unit.Priority >= PriorityVisible {
			stats.Visible++
		} else {
			stats.Selectable++
		}
	}
	return stats
}

// PriorityQueueStats reports queue depth by priority level.
type PriorityQueueStats struct {
	Total      int `json:"total"`
	Visible    int `json:"visible"`
	Selectable int `json:"selectable"`
}

type workUnitItem struct {
	unit *WorkUnit
	seq  uint64
}

type workUnitHeap []*workUnitItem

func (h workUnitHeap) Len() int { return len(h) }

func (h workUnitHeap) Less(i, j int) bool {
	if h[i].unit.Priority != h[j].unit.Priority {
		return h[i].unit.Priority > h[j].unit.Priority
	}
	return h[i].seq < h[j].seq
}

func (h workUnitHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *workUnitHeap) Push(x any) {
	*h = append(*h, x.(*workUnitItem))
}

func (h *workUnitHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
