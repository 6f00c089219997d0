package port

import "context"

// Extraction is the input contract from the document-to-text collaborator:
// newline-joined page text plus ordered table grids. Each grid is row-major
// and its first row is treated as the header row.
type Extraction struct {
	Text   string
	Tables [][][]string
}

// DocumentExtractor abstracts the raw document conversion step. The pipeline
// never touches source files directly; it consumes extractions.
type DocumentExtractor interface {
	Extract(ctx context.Context, path string) (*Extraction, error)
}
