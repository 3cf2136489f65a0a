// Package loader declares the DocumentLoader capability: file-format
// parsing for PDF, DOCX, XLSX, plain text, and markdown. Concrete parsers
// live outside this module.
package loader

import "context"

// Loaded is the result of reading a source file.
type Loaded struct {
	// Text is the full extracted text of the document.
	Text string

	// Pages is an ordered slice of per-page text for paged formats (PDF,
	// DOCX with page breaks). Empty for unpaged formats; chunk-to-page
	// mapping uses cumulative lengths over this slice.
	Pages []string
}

// DocumentLoader reads a source file and extracts its text content.
type DocumentLoader interface {
	Load(ctx context.Context, path string) (Loaded, error)
}
