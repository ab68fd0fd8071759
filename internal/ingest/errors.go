package ingest

import "errors"

var (
	// ErrUnsupportedFormat marks documents the parser registry cannot handle.
	// User-correctable; surfaced immediately without retry.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	ErrNoExtractableText = errors.New("no extractable text found in document")
)
