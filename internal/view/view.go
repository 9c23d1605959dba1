// Package view models which pages of the open document a headless host
// considers visible and selectable.
package view

import (
	"sync"

	"github.com/glueous/reader/internal/enrich"
)

// Whole is the radius that covers the entire document.
const Whole = -1

// Config configures a Model.
type Config struct {
	// PageCount returns the number of pages of the open document, or 0.
	PageCount func() int
	// VisibleRadius is the number of pages on each side of the current page
	// treated as on screen.
	VisibleRadius int
	// SelectableRadius is the number of pages on each side of the current
	// page reachable by scrolling.
	SelectableRadius int
}

// Model is a viewport centred on the current page. It implements
// enrich.ViewSource.
type Model struct {
	pageCount func() int

	mu         sync.RWMutex
	current    int
	visible    int
	selectable int
}

// New creates a model positioned on the first page.
func New(cfg Config) *Model {
	pc := cfg.PageCount
	if pc == nil {
		pc = func() int { return 0 }
	}
	return &Model{
		pageCount:  pc,
		visible:    cfg.VisibleRadius,
		selectable: cfg.SelectableRadius,
	}
}

// SetCurrent moves the viewport. Out of range values are clamped when the
// view is computed.
func (m *Model) SetCurrent(page int) {
	m.mu.Lock()
	m.current = page
	m.mu.Unlock()
}

// Current returns the current page clamped to the open document.
func (m *Model) Current() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clamp(m.current, m.pageCount())
}

// SetRadii changes the visible and selectable radii.
func (m *Model) SetRadii(visible, selectable int) {
	m.mu.Lock()
	m.visible, m.selectable = visible, selectable
	m.mu.Unlock()
}

// Radii returns the visible and selectable radii.
func (m *Model) Radii() (visible, selectable int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.visible, m.selectable
}

// View returns the visible pages nearest first, starting with the current
// page, and the selectable pages in ascending order.
func (m *Model) View() enrich.View {
	m.mu.RLock()
	n := m.pageCount()
	cur := clamp(m.current, n)
	vr, sr := m.visible, m.selectable
	m.mu.RUnlock()

	if n == 0 {
		return enrich.View{Visible: []int{}, Selectable: []int{}}
	}
	return enrich.View{
		Visible:    nearest(cur, radius(vr, n), n),
		Selectable: ascending(cur, radius(sr, n), n),
		Current:    cur,
	}
}

func radius(r, n int) int {
	if r < 0 {
		return n
	}
	return r
}

func clamp(p, n int) int {
	if n <= 0 || p < 0 {
		return 0
	}
	if p >= n {
		return n - 1
	}
	return p
}

// nearest lists cur, cur+1, cur-1, cur+2, ... within r pages.
func nearest(cur, r, n int) []int {
	pages := []int{cur}
	for d := 1; d <= r; d++ {
		if after := cur + d; after < n {
			pages = append(pages, after)
		}
		if before := cur - d; before >= 0 {
			pages = append(pages, before)
		}
		if cur+d >= n && cur-d < 0 {
			break
		}
	}
	return pages
}

func ascending(cur, r, n int) []int {
	lo, hi := max(cur-r, 0), min(cur+r, n-1)
	pages := make([]int, 0, hi-lo+1)
	for p := lo; p <= hi; p++ {
		pages = append(pages, p)
	}
	return pages
}
