package repository

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/iconidentify/linkgrab/internal/config"
)

func TestNewFilesystemRemuxCache_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "remux", "nested")

	if _, err := NewFilesystemRemuxCache(config.StorageConfig{RemuxPath: dir}); err != nil {
		t.Fatalf("NewFilesystemRemuxCache failed: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("directory not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("remux path should be a directory")
	}
}

func TestFilesystemRemuxCache_Path(t *testing.T) {
	dir := t.TempDir()
	cache, _ := NewFilesystemRemuxCache(config.StorageConfig{RemuxPath: dir})

	tests := []struct {
		id   string
		want string
	}{
		{"abc123", filepath.Join(dir, "abc123.mp4")},
		{"../escape", filepath.Join(dir, "___escape.mp4")},
		{"a/b", filepath.Join(dir, "a_b.mp4")},
	}
	for _, tt := range tests {
		if got := cache.Path(tt.id); got != tt.want {
			t.Errorf("Path(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestFilesystemRemuxCache_Exists(t *testing.T) {
	ctx := context.Background()
	cache, _ := NewFilesystemRemuxCache(config.StorageConfig{RemuxPath: t.TempDir()})

	ok, err := cache.Exists(ctx, "abc")
	if err != nil || ok {
		t.Fatalf("Exists before write = %v, %v; want false, nil", ok, err)
	}

	if err := os.WriteFile(cache.Path("empty"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	if ok, _ := cache.Exists(ctx, "empty"); ok {
		t.Error("empty file should not count as a completed remux")
	}

	if err := os.WriteFile(cache.Path("abc"), []byte("mp4"), 0644); err != nil {
		t.Fatal(err)
	}
	if ok, err := cache.Exists(ctx, "abc"); err != nil || !ok {
		t.Errorf("Exists after write = %v, %v; want true, nil", ok, err)
	}
}

func TestFilesystemRemuxCache_Open(t *testing.T) {
	dir := t.TempDir()
	cache, _ := NewFilesystemRemuxCache(config.StorageConfig{RemuxPath: dir})
	path := cache.Path("abc")
	if err := os.WriteFile(path, []byte("video"), 0644); err != nil {
		t.Fatal(err)
	}

	rc, size, err := cache.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer rc.Close()
	if size != 5 {
		t.Errorf("size = %d, want 5", size)
	}
	data, _ := io.ReadAll(rc)
	if string(data) != "video" {
		t.Errorf("data = %q, want %q", data, "video")
	}
}

func TestFilesystemRemuxCache_Open_RejectsOutsidePaths(t *testing.T) {
	dir := t.TempDir()
	cache, _ := NewFilesystemRemuxCache(config.StorageConfig{RemuxPath: filepath.Join(dir, "remux")})
	outside := filepath.Join(dir, "secret.mp4")
	if err := os.WriteFile(outside, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := cache.Open(outside); err == nil {
		t.Error("Open should refuse paths outside the cache directory")
	}
	if _, _, err := cache.Open(cache.Path("missing")); err == nil {
		t.Error("Open should fail for a missing file")
	}
}
