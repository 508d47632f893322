package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/iconidentify/linkgrab/internal/config"
)

// FilesystemRemuxCache implements RemuxCache on a scratch directory. Files are
// kept indefinitely.
type FilesystemRemuxCache struct {
	basePath string
}

// NewFilesystemRemuxCache creates the cache, creating its directory if absent.
func NewFilesystemRemuxCache(cfg config.StorageConfig) (*FilesystemRemuxCache, error) {
	if err := os.MkdirAll(cfg.RemuxPath, 0755); err != nil {
		return nil, fmt.Errorf("create remux directory: %w", err)
	}
	return &FilesystemRemuxCache{basePath: cfg.RemuxPath}, nil
}

// Path returns the MP4 path for postID.
func (c *FilesystemRemuxCache) Path(postID string) string {
	return filepath.Join(c.basePath, sanitizeID(postID)+".mp4")
}

// Exists reports whether a non-empty remux output exists for postID.
func (c *FilesystemRemuxCache) Exists(ctx context.Context, postID string) (bool, error) {
	info, err := os.Stat(c.Path(postID))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat remux output: %w", err)
	}
	return info.Mode().IsRegular() && info.Size() > 0, nil
}

// Open opens a file inside the cache directory.
func (c *FilesystemRemuxCache) Open(path string) (io.ReadCloser, int64, error) {
	rel, err := filepath.Rel(c.basePath, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, 0, fmt.Errorf("path %q is outside the remux directory", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open remux output: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat remux output: %w", err)
	}
	return f, info.Size(), nil
}

// sanitizeID keeps post IDs from escaping the cache directory.
func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, id)
}
