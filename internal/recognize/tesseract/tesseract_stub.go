//go:build !ocr

// Package tesseract recognizes text with the Tesseract engine. This build was
// compiled without the "ocr" tag, so the engine reports it is unavailable.
package tesseract

import (
	"github.com/glueous/reader/internal/recognize"
)

// Name is the registry name of this engine.
const Name = "tesseract"

// New always fails with recognize.ErrEngineNotEnabled.
func New(cfg recognize.EngineConfig) (recognize.Engine, error) {
	return nil, recognize.ErrEngineNotEnabled
}
