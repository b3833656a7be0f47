// Package render rasterizes PDF documents into per-page pixel buffers.
package render

import (
	"context"
	"errors"
	"image"
)

var (
	ErrEmptyDocument = errors.New("empty document")
	ErrNoPages       = errors.New("document has no pages")
	ErrPageIndex     = errors.New("page index out of range")
)

// Page is one rasterized page.
type Page struct {
	Width  int
	Height int
	Image  image.Image
}

// Document is an opened PDF. RenderPage may be called concurrently for different indexes.
type Document interface {
	PageCount() int
	// RenderPage rasterizes the page at a 0-based index.
	RenderPage(ctx context.Context, index int) (Page, error)
	Close() error
}

type Renderer interface {
	Open(ctx context.Context, doc []byte) (Document, error)
}
