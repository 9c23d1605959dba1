package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ErrPageOutOfRange is returned when a page index is outside the document.
var ErrPageOutOfRange = errors.New("page out of range")

// ErrClosed is returned when a closed document is accessed.
var ErrClosed = errors.New("document is closed")

// contentNamespace scopes content-derived identities.
var contentNamespace = uuid.MustParse("6f1c2a4e-8d0b-4c57-9a3e-2b7d51e0c9f4")

// Identity is the stable key of a document across sessions.
type Identity string

// IdentityFromPath derives an identity from the absolute, cleaned file path.
func IdentityFromPath(path string) (Identity, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve document path: %w", err)
	}
	return Identity(filepath.Clean(abs)), nil
}

// IdentityFromContent derives an identity from the document bytes, so a
// renamed or moved file keeps its cache entries.
func IdentityFromContent(r io.Reader) (Identity, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read document content: %w", err)
	}
	return Identity("sha1:" + uuid.NewSHA1(contentNamespace, data).String()), nil
}

// IdentityFromFile derives an identity for path using the named mode
// ("path" or "content").
func IdentityFromFile(path, mode string) (Identity, error) {
	switch mode {
	case "", "path":
		return IdentityFromPath(path)
	case "content":
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("open document: %w", err)
		}
		defer f.Close()
		return IdentityFromContent(f)
	default:
		return "", fmt.Errorf("unknown identity mode %q", mode)
	}
}

// PageKey identifies one page of one document. Page is zero-based.
type PageKey struct {
	Doc  Identity `json:"doc"`
	Page int      `json:"page"`
}

func (k PageKey) String() string {
	return fmt.Sprintf("%s#%d", k.Doc, k.Page)
}

// Rect is an axis-aligned box in page coordinates (points, origin top-left).
// It serializes as [x0, y0, x1, y1].
type Rect struct {
	X0, Y0, X1, Y1 float64
}

func (r Rect) Width() float64  { return r.X1 - r.X0 }
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// IsEmpty reports whether the rect encloses no area.
func (r Rect) IsEmpty() bool {
	return r.X1 <= r.X0 || r.Y1 <= r.Y0
}

// Intersects reports whether r and o overlap with positive area.
func (r Rect) Intersects(o Rect) bool {
	return r.X0 < o.X1 && o.X0 < r.X1 && r.Y0 < o.Y1 && o.Y0 < r.Y1
}

func (r Rect) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{r.X0, r.Y0, r.X1, r.Y1})
}

func (r *Rect) UnmarshalJSON(data []byte) error {
	var v [4]float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("rect: %w", err)
	}
	r.X0, r.Y0, r.X1, r.Y1 = v[0], v[1], v[2], v[3]
	return nil
}

// TextSpan is a recognized text fragment placed on a page.
type TextSpan struct {
	Text       string   `json:"text"`
	Box        Rect     `json:"bbox"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Image is an embedded raster image and where it is drawn on the page.
type Image struct {
	Index int
	Name  string
	// Rect is the placement of the image on the page.
	Rect Rect
	// Data holds the encoded image bytes (png, jpeg, tiff...).
	Data []byte
}

// Page is one page of an open document.
type Page interface {
	Number() int
	Rect() Rect
	Images(ctx context.Context) ([]Image, error)
	// InsertText adds span to the page text layer. Invisible spans are
	// searchable and extractable but not rendered.
	InsertText(span TextSpan, visible bool) error
	// ClearInjected removes every span previously added with InsertText.
	ClearInjected() error
	// Text returns native plus injected text, restricted to clip when set.
	Text(clip *Rect) string
	Blocks(clip *Rect) []Block
	Injected() []TextSpan
}

// Document is an open document.
type Document interface {
	Identity() Identity
	PageCount() int
	Page(n int) (Page, error)
	// Reset discards in-memory modifications (injected text) as a reopen would.
	Reset(ctx context.Context) error
	Close() error
}

// Opener opens documents by path.
type Opener interface {
	Open(ctx context.Context, path string) (Document, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, path string) (Document, error)

func (f OpenerFunc) Open(ctx context.Context, path string) (Document, error) {
	return f(ctx, path)
}
