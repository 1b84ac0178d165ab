package port

import (
	"context"

	"github.com/proplens/go-crm-agent/internal/domain"
)

// PageExtractor turns one document into an ordered sequence of per-page
// text records. Pages that cannot be read are skipped, not fatal.
type PageExtractor interface {
	ExtractPages(ctx context.Context, pdfPath string) ([]domain.Page, error)
}
