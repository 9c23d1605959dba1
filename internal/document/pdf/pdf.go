// Package pdf opens PDF files as enrichable documents.
//
// Native text comes from ledongthuc/pdf; page geometry and embedded raster
// images come from pdfcpu.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	lpdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/glueous/reader/internal/document"
)

// Opener opens PDF files from disk.
type Opener struct {
	// IdentityMode selects how document identity is derived: "path" or "content".
	IdentityMode string
	Logger       *slog.Logger
}

// NewOpener creates a PDF opener.
func NewOpener(identityMode string, logger *slog.Logger) *Opener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Opener{IdentityMode: identityMode, Logger: logger}
}

// Open reads and validates the PDF at path.
func (o *Opener) Open(ctx context.Context, path string) (document.Document, error) {
	id, err := document.IdentityFromFile(path, o.IdentityMode)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}
	return Load(ctx, id, content, o.Logger)
}

// Document is an open PDF held in memory.
type Document struct {
	id      document.Identity
	content []byte
	logger  *slog.Logger

	textReader *lpdf.Reader
	rects      []document.Rect

	mu     sync.Mutex
	pctx   *model.Context
	layers map[int]*document.TextLayer
	closed bool
}

// Load parses PDF bytes into a Document identified by id.
func Load(ctx context.Context, id document.Identity, content []byte, logger *slog.Logger) (*Document, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.Cmd = model.EXTRACTIMAGES
	pctx, err := api.ReadValidateAndOptimize(bytes.NewReader(content), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PDF: %w", err)
	}

	dims, err := pctx.PageDims()
	if err != nil {
		return nil, fmt.Errorf("failed to read page dimensions: %w", err)
	}
	rects := make([]document.Rect, len(dims))
	for i, d := range dims {
		rects[i] = document.Rect{X1: d.Width, Y1: d.Height}
	}

	textReader, err := lpdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		// Text extraction is best effort; pages fall back to empty native text.
		logger.Warn("native text unavailable", "doc", id, "error", err)
		textReader = nil
	}

	return &Document{
		id:         id,
		content:    content,
		logger:     logger,
		textReader: textReader,
		rects:      rects,
		pctx:       pctx,
		layers:     make(map[int]*document.TextLayer),
	}, nil
}

func (d *Document) Identity() document.Identity { return d.id }
func (d *Document) PageCount() int              { return len(d.rects) }

// Page returns page n (zero-based).
func (d *Document) Page(n int) (document.Page, error) {
	if n < 0 || n >= len(d.rects) {
		return nil, fmt.Errorf("%w: %d of %d", document.ErrPageOutOfRange, n, len(d.rects))
	}
	l, err := d.layer(n)
	if err != nil {
		return nil, err
	}
	return &page{doc: d, number: n, layer: l}, nil
}

func (d *Document) layer(n int) (*document.TextLayer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, fmt.Errorf("%w: %s", document.ErrClosed, d.id)
	}
	if l, ok := d.layers[n]; ok {
		return l, nil
	}
	l := document.NewTextLayer(d.nativeText(n))
	d.layers[n] = l
	return l, nil
}

func (d *Document) nativeText(n int) string {
	if d.textReader == nil {
		return ""
	}
	p := d.textReader.Page(n + 1)
	if p.V.IsNull() {
		return ""
	}
	text, err := p.GetPlainText(nil)
	if err != nil {
		d.logger.Debug("native text extraction failed", "doc", d.id, "page", n, "error", err)
		return ""
	}
	return strings.TrimSpace(text)
}

// Reset drops every text layer, discarding injected text.
func (d *Document) Reset(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("%w: %s", document.ErrClosed, d.id)
	}
	d.layers = make(map[int]*document.TextLayer)
	return nil
}

func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.layers = make(map[int]*document.TextLayer)
	d.pctx = nil
	return nil
}

func (d *Document) images(ctx context.Context, n int) ([]document.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// pdfcpu contexts are not safe for concurrent extraction.
	d.mu.Lock()
	pctx := d.pctx
	if pctx == nil {
		d.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", document.ErrClosed, d.id)
	}
	extracted, err := pdfcpu.ExtractPageImages(pctx, n+1, false)
	d.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to extract images of page %d: %w", n, err)
	}

	// pdfcpu does not expose placement matrices, so every image is placed
	// over the full page box. Scanned pages carry one full-page image.
	placement := d.rects[n]

	images := make([]document.Image, 0, len(extracted))
	for objNr, img := range extracted {
		if img.Reader == nil {
			continue
		}
		data, err := io.ReadAll(img.Reader)
		if err != nil || len(data) == 0 {
			d.logger.Debug("skipping unreadable image", "doc", d.id, "page", n, "obj", objNr, "error", err)
			continue
		}
		images = append(images, document.Image{
			Index: objNr,
			Name:  img.Name + "." + img.FileType,
			Rect:  placement,
			Data:  data,
		})
	}
	sort.Slice(images, func(i, j int) bool { return images[i].Index < images[j].Index })
	return images, nil
}

type page struct {
	doc    *Document
	number int
	layer  *document.TextLayer
}

func (p *page) Number() int         { return p.number }
func (p *page) Rect() document.Rect { return p.doc.rects[p.number] }

func (p *page) Images(ctx context.Context) ([]document.Image, error) {
	return p.doc.images(ctx, p.number)
}

func (p *page) InsertText(span document.TextSpan, visible bool) error {
	p.layer.Insert(span, visible)
	return nil
}

func (p *page) ClearInjected() error {
	p.layer.Clear()
	return nil
}

func (p *page) Text(clip *document.Rect) string            { return p.layer.Text(clip) }
func (p *page) Blocks(clip *document.Rect) []document.Block { return p.layer.Blocks(clip) }
func (p *page) Injected() []document.TextSpan              { return p.layer.Spans() }
