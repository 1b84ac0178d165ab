// Package extract turns PDF brochures into ordered per-page text records.
// It prefers the embedded text layer and falls back to OCR when a page is
// likely image-only.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/proplens/go-crm-agent/internal/domain"
	"github.com/proplens/go-crm-agent/internal/port"
)

var (
	softHyphenRe = regexp.MustCompile("­")
	hyphenWrapRe = regexp.MustCompile(`-\n`)
	trailingWSRe = regexp.MustCompile(`\s+\n`)
	runSpacesRe  = regexp.MustCompile(`[ \t]+`)
)

// PDFExtractor implements port.PageExtractor over ledongthuc/pdf with an
// OCR fallback for image-heavy pages.
type PDFExtractor struct {
	ocr          port.OCRProvider
	ocrTextFloor int // text-layer chars below which OCR is attempted
	pageMinChars int // pages shorter than this are dropped as noise
}

// NewPDFExtractor creates an extractor. ocr may be nil to disable the
// fallback entirely.
func NewPDFExtractor(ocr port.OCRProvider, ocrTextFloor, pageMinChars int) *PDFExtractor {
	return &PDFExtractor{ocr: ocr, ocrTextFloor: ocrTextFloor, pageMinChars: pageMinChars}
}

// ExtractPages reads every page of the PDF, normalizes its text layer and
// applies the OCR fallback where that layer is too thin. A page that cannot
// be read is skipped; only opening the document itself is fatal.
func (e *PDFExtractor) ExtractPages(ctx context.Context, pdfPath string) ([]domain.Page, error) {
	f, reader, err := pdf.Open(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var pages []domain.Page
	for num := 1; num <= reader.NumPage(); num++ {
		text := e.textLayer(reader, num)
		chars := len(text)

		isOCR := false
		if chars < e.ocrTextFloor && e.ocr != nil {
			ocrText, ocrErr := e.ocr.RecognizePage(ctx, pdfPath, num)
			if ocrErr != nil {
				slog.Warn("ocr fallback failed", "path", pdfPath, "page", num, "error", ocrErr)
			} else {
				ocrText = NormalizeText(ocrText)
				// Adopt OCR output only when it actually beats the text layer.
				if len(ocrText) > chars {
					text = ocrText
					chars = len(text)
					isOCR = true
				}
			}
		}

		// skip super-short garbage
		if chars < e.pageMinChars {
			continue
		}

		pages = append(pages, domain.Page{
			Number:    num,
			Text:      text,
			OCR:       isOCR,
			CharCount: chars,
		})
	}

	return pages, nil
}

// textLayer pulls the embedded text of one page, normalized. Returns ""
// when the page is unreadable.
func (e *PDFExtractor) textLayer(reader *pdf.Reader, num int) string {
	defer func() {
		// ledongthuc/pdf panics on malformed content streams; treat
		// such pages as empty rather than aborting the document.
		if r := recover(); r != nil {
			slog.Warn("text layer extraction panicked", "page", num, "panic", r)
		}
	}()

	page := reader.Page(num)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		slog.Warn("text layer extraction failed", "page", num, "error", err)
		return ""
	}
	return NormalizeText(text)
}

// NormalizeText collapses whitespace and joins words hyphenated across
// line breaks, mirroring what the chunker expects downstream.
func NormalizeText(s string) string {
	s = softHyphenRe.ReplaceAllString(s, "")
	s = hyphenWrapRe.ReplaceAllString(s, "")
	s = trailingWSRe.ReplaceAllString(s, "\n")
	s = runSpacesRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// ReadTitle returns the PDF's Title metadata, or "" when absent. Used to
// default the project name when the uploader does not provide one.
func ReadTitle(pdfPath string) string {
	f, reader, err := pdf.Open(pdfPath)
	if err != nil {
		return ""
	}
	defer f.Close()

	defer func() { _ = recover() }()

	info := reader.Trailer().Key("Info")
	if info.IsNull() {
		return ""
	}
	title := info.Key("Title")
	if title.IsNull() {
		return ""
	}
	return strings.TrimSpace(title.RawString())
}
