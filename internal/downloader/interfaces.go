package downloader

import (
	"context"

	"github.com/iconidentify/linkgrab/internal/domain"
)

// Fetcher downloads media within a byte budget, falling back to a link when the
// media does not fit.
type Fetcher interface {
	// Fetch downloads req.URL. It returns an attachment when the body fits under
	// req.MaxBytes and a link-only result otherwise.
	Fetch(ctx context.Context, req Request) (domain.FetchResult, error)

	// Link builds a link-only result for url without downloading it.
	Link(ctx context.Context, url string, spoiler bool) domain.FetchResult
}

// Request describes one media download.
type Request struct {
	// URL is used verbatim; it is never re-encoded.
	URL          string
	FilenameBase string
	// Ext overrides the extension inferred from Content-Type.
	Ext      string
	MaxBytes int64
	Spoiler  bool
}

// Shortener shortens URLs for link-only results.
type Shortener interface {
	Shorten(ctx context.Context, url string, tags []string) (string, error)
}
