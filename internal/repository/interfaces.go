package repository

import (
	"context"
	"io"
)

// RemuxCache locates remuxed videos on local storage, keyed by post ID.
type RemuxCache interface {
	// Path returns the deterministic output path for postID. The file may not exist yet.
	Path(postID string) string

	// Exists reports whether a completed remux for postID is present.
	Exists(ctx context.Context, postID string) (bool, error)

	// Open opens a remux output previously written to a Path and returns its size.
	Open(path string) (io.ReadCloser, int64, error)
}
