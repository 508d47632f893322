package service

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"log/slog"
	"sync"

	"github.com/iconidentify/linkgrab/internal/domain"
	"github.com/iconidentify/linkgrab/internal/downloader"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type stubResolver struct {
	name  string
	posts map[string]*domain.Post
	err   error
}

func (s *stubResolver) Name() string { return s.name }

func (s *stubResolver) Resolve(ctx context.Context, ref domain.Reference) (*domain.Post, error) {
	if s.err != nil {
		return nil, s.err
	}
	if p, ok := s.posts[ref.ID]; ok {
		return p, nil
	}
	return nil, domain.ErrNoMediaFound
}

// fakeFetcher attaches every URL except those listed in links or errs.
type fakeFetcher struct {
	mu       sync.Mutex
	links    map[string]bool
	errs     map[string]error
	requests []downloader.Request
	linked   []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, req downloader.Request) (domain.FetchResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if err := f.errs[req.URL]; err != nil {
		return domain.FetchResult{}, err
	}
	if f.links[req.URL] {
		return f.Link(ctx, req.URL, req.Spoiler), nil
	}
	return domain.AttachmentResult([]byte(req.URL), req.FilenameBase+"."+req.Ext, req.Spoiler), nil
}

func (f *fakeFetcher) Link(ctx context.Context, url string, spoiler bool) domain.FetchResult {
	f.mu.Lock()
	f.linked = append(f.linked, url)
	f.mu.Unlock()
	return domain.LinkResult(url, spoiler)
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recordingEmitter) Emit(e domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingEmitter) count(severity domain.EventSeverity) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Severity == severity {
			n++
		}
	}
	return n
}

type memRemuxCache struct {
	files map[string][]byte
}

func (m *memRemuxCache) Path(postID string) string { return "/remux/" + postID + ".mp4" }

func (m *memRemuxCache) Exists(ctx context.Context, postID string) (bool, error) {
	_, ok := m.files[m.Path(postID)]
	return ok, nil
}

func (m *memRemuxCache) Open(path string) (io.ReadCloser, int64, error) {
	data, ok := m.files[path]
	if !ok {
		return nil, 0, fs.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}
