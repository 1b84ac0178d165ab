package port

import "errors"

// Sentinel errors used across ports.
var (
	ErrProjectRequired = errors.New("project name required")
	ErrNotPDF          = errors.New("only PDF brochures are accepted")
	ErrDocumentEmpty   = errors.New("document produced no usable pages")
	ErrNoQuery         = errors.New("no SQL could be generated for this question")
)
