package document

import (
	"context"
	"fmt"
	"sync"
)

// MemoryPageSpec describes a page of a Memory document.
type MemoryPageSpec struct {
	Text   string
	Rect   Rect
	Images []Image
}

// MemoryPage is a page held entirely in memory.
type MemoryPage struct {
	number int
	rect   Rect
	images []Image
	layer  *TextLayer

	mu sync.Mutex
	// Error injection for tests.
	ImagesErr error
	InsertErr error
	imageReqs int
}

func (p *MemoryPage) Number() int { return p.number }
func (p *MemoryPage) Rect() Rect  { return p.rect }

func (p *MemoryPage) Images(ctx context.Context) ([]Image, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.imageReqs++
	if p.ImagesErr != nil {
		return nil, p.ImagesErr
	}
	out := make([]Image, len(p.images))
	copy(out, p.images)
	return out, nil
}

// ImageRequests reports how many times Images was called.
func (p *MemoryPage) ImageRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.imageReqs
}

func (p *MemoryPage) InsertText(span TextSpan, visible bool) error {
	if p.InsertErr != nil {
		return p.InsertErr
	}
	p.layer.Insert(span, visible)
	return nil
}

func (p *MemoryPage) ClearInjected() error {
	p.layer.Clear()
	return nil
}

func (p *MemoryPage) Text(clip *Rect) string   { return p.layer.Text(clip) }
func (p *MemoryPage) Blocks(clip *Rect) []Block { return p.layer.Blocks(clip) }
func (p *MemoryPage) Injected() []TextSpan      { return p.layer.Spans() }

// VisibleSpans returns the injected spans that would be rendered.
func (p *MemoryPage) VisibleSpans() []TextSpan { return p.layer.VisibleSpans() }

// Memory is an in-memory Document.
type Memory struct {
	id    Identity
	pages []*MemoryPage

	mu     sync.Mutex
	resets int
	closed bool
}

// NewMemory builds a document with one page per spec.
func NewMemory(id Identity, specs ...MemoryPageSpec) *Memory {
	m := &Memory{id: id}
	for i, s := range specs {
		rect := s.Rect
		if rect.IsEmpty() {
			rect = Rect{X1: 612, Y1: 792}
		}
		m.pages = append(m.pages, &MemoryPage{
			number: i,
			rect:   rect,
			images: s.Images,
			layer:  NewTextLayer(s.Text),
		})
	}
	return m
}

func (m *Memory) Identity() Identity { return m.id }
func (m *Memory) PageCount() int     { return len(m.pages) }

func (m *Memory) Page(n int) (Page, error) {
	return m.MemoryPage(n)
}

// MemoryPage returns the concrete page n.
func (m *Memory) MemoryPage(n int) (*MemoryPage, error) {
	if n < 0 || n >= len(m.pages) {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, n, len(m.pages))
	}
	return m.pages[n], nil
}

func (m *Memory) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pages {
		p.layer.Clear()
	}
	m.resets++
	return nil
}

// Resets reports how many times Reset was called.
func (m *Memory) Resets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *Memory) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
