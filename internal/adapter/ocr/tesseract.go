// Package ocr recognizes text on rasterized PDF pages by shelling out to
// poppler's pdftoppm and the tesseract CLI. Both binaries must be on PATH.
package ocr

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// TesseractProvider implements port.OCRProvider via external binaries.
type TesseractProvider struct {
	language string // tesseract language code, e.g. "eng"
	dpi      int
}

// NewTesseractProvider creates an OCR provider for the given language.
func NewTesseractProvider(language string) *TesseractProvider {
	if language == "" {
		language = "eng"
	}
	return &TesseractProvider{language: language, dpi: 300}
}

// RecognizePage rasterizes one page of the PDF at 300 dpi and runs tesseract
// over the resulting image, returning the raw recognized text.
func (t *TesseractProvider) RecognizePage(ctx context.Context, pdfPath string, page int) (string, error) {
	if page < 1 {
		return "", fmt.Errorf("ocr: invalid page %d", page)
	}

	tmpDir, err := os.MkdirTemp("", "ocr-page-")
	if err != nil {
		return "", fmt.Errorf("ocr: temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	imgBase := filepath.Join(tmpDir, "page")
	rasterize := exec.CommandContext(ctx, "pdftoppm",
		"-singlefile",
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		"-r", strconv.Itoa(t.dpi),
		"-png",
		pdfPath, imgBase,
	)
	if out, err := rasterize.CombinedOutput(); err != nil {
		return "", fmt.Errorf("ocr: pdftoppm page %d: %w (%s)", page, err, strings.TrimSpace(string(out)))
	}

	recognize := exec.CommandContext(ctx, "tesseract", imgBase+".png", "stdout", "-l", t.language)
	out, err := recognize.Output()
	if err != nil {
		return "", fmt.Errorf("ocr: tesseract page %d: %w", page, err)
	}

	return string(out), nil
}
