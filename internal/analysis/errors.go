// Package analysis turns a stored report into an image a vision model can
// read, and runs the model over it.
//
// The pipeline is: fetch the file (Fetcher), resolve its MIME type
// (ResolveMIME), rasterize the first page of PDFs (Rasterizer inside a
// scoped Workspace), encode it inline (EncodeInline), and call the model
// (VisionModel).
package analysis

import "errors"

var (
	// ErrFetch covers network failures, non-2xx responses, empty bodies and
	// oversize downloads.
	ErrFetch = errors.New("upstream fetch failed")
	// ErrConversion is returned when a PDF cannot be rasterized.
	ErrConversion = errors.New("conversion failed")
	// ErrEncoding is returned when there are no bytes to encode.
	ErrEncoding = errors.New("encoding failed")
)
