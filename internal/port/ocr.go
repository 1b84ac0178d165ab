package port

import "context"

// OCRProvider recognizes text on a rasterized document page. Used as a
// fallback when the embedded text layer of a PDF page is too thin.
type OCRProvider interface {
	// RecognizePage rasterizes the given page (1-based) of a PDF and runs
	// optical character recognition over it, returning the raw text.
	RecognizePage(ctx context.Context, pdfPath string, page int) (string, error)
}
