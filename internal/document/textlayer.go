package document

import (
	"strings"
	"sync"
)

// InjectedFont is the font name reported for injected spans in block output.
const InjectedFont = "OCR"

// Block is a text block in structured page output.
type Block struct {
	Type  int    `json:"type"`
	BBox  Rect   `json:"bbox"`
	Lines []Line `json:"lines"`
}

// Line is one line of a Block.
type Line struct {
	BBox  Rect        `json:"bbox"`
	WMode int         `json:"wmode"`
	Dir   [2]float64  `json:"dir"`
	Spans []BlockSpan `json:"spans"`
}

// BlockSpan is one styled run of text within a Line.
type BlockSpan struct {
	Text   string     `json:"text"`
	BBox   Rect       `json:"bbox"`
	Origin [2]float64 `json:"origin"`
	Flags  int        `json:"flags"`
	Font   string     `json:"font"`
	Size   float64    `json:"size"`
}

type layerSpan struct {
	span    TextSpan
	visible bool
}

// TextLayer overlays injected spans on a page's native text.
// It is safe for concurrent use.
type TextLayer struct {
	mu       sync.RWMutex
	native   string
	injected []layerSpan
}

// NewTextLayer creates a layer over the given native page text.
func NewTextLayer(native string) *TextLayer {
	return &TextLayer{native: native}
}

// Insert adds a span to the layer.
func (l *TextLayer) Insert(span TextSpan, visible bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.injected = append(l.injected, layerSpan{span: span, visible: visible})
}

// Clear drops every injected span.
func (l *TextLayer) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.injected = nil
}

// Spans returns the injected spans in insertion order.
func (l *TextLayer) Spans() []TextSpan {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]TextSpan, len(l.injected))
	for i, s := range l.injected {
		out[i] = s.span
	}
	return out
}

// VisibleSpans returns only the spans inserted as visible.
func (l *TextLayer) VisibleSpans() []TextSpan {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []TextSpan
	for _, s := range l.injected {
		if s.visible {
			out = append(out, s.span)
		}
	}
	return out
}

// Text returns the native text followed by the injected spans, one per line.
// With a clip, only injected spans intersecting it are included.
func (l *TextLayer) Text(clip *Rect) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var parts []string
	for _, s := range l.injected {
		if clip != nil && !s.span.Box.Intersects(*clip) {
			continue
		}
		parts = append(parts, s.span.Text)
	}
	if len(parts) == 0 {
		return l.native
	}

	var b strings.Builder
	b.WriteString(l.native)
	if l.native != "" && !strings.HasSuffix(l.native, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString(strings.Join(parts, "\n"))
	return b.String()
}

// Blocks returns one single-line text block per injected span.
func (l *TextLayer) Blocks(clip *Rect) []Block {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var blocks []Block
	for _, s := range l.injected {
		box := s.span.Box
		if clip != nil && !box.Intersects(*clip) {
			continue
		}
		blocks = append(blocks, Block{
			Type: 0,
			BBox: box,
			Lines: []Line{{
				BBox: box,
				Dir:  [2]float64{1, 0},
				Spans: []BlockSpan{{
					Text:   s.span.Text,
					BBox:   box,
					Origin: [2]float64{box.X0, box.Y1},
					Font:   InjectedFont,
					Size:   10,
				}},
			}},
		})
	}
	return blocks
}
