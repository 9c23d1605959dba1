package recognize

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	// Decoders for images extracted from documents.
	_ "image/gif"
	_ "image/jpeg"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Prepared is an image ready for recognition.
type Prepared struct {
	Data       []byte // PNG
	Width      int
	Height     int
	OrigWidth  int
	OrigHeight int
	Format     string
}

// Prepare decodes encoded image bytes, converts to RGBA and downscales so the
// longest side is at most maxDim pixels (0 disables scaling). The result is
// re-encoded as PNG.
func Prepare(data []byte, maxDim int) (Prepared, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Prepared{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return Prepared{}, fmt.Errorf("%w: empty image", ErrUnsupportedImage)
	}

	dw, dh := fitWithin(w, h, maxDim)
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	if dw == w && dh == h {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return Prepared{}, fmt.Errorf("failed to encode prepared image: %w", err)
	}
	return Prepared{
		Data:       buf.Bytes(),
		Width:      dw,
		Height:     dh,
		OrigWidth:  w,
		OrigHeight: h,
		Format:     format,
	}, nil
}

func fitWithin(w, h, maxDim int) (int, int) {
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return w, h
	}
	scale := float64(maxDim) / float64(max(w, h))
	dw := max(1, int(float64(w)*scale+0.5))
	dh := max(1, int(float64(h)*scale+0.5))
	return dw, dh
}
