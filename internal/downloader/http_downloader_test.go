package downloader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iconidentify/linkgrab/internal/config"
	"github.com/iconidentify/linkgrab/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.DownloadConfig {
	return config.DownloadConfig{
		Timeout:    5 * time.Second,
		ChunkSize:  1024,
		UserAgents: []string{"test-agent"},
	}
}

type fakeShortener struct {
	short string
	err   error
	calls int32
	tags  []string
}

func (f *fakeShortener) Shorten(ctx context.Context, url string, tags []string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	f.tags = tags
	if f.err != nil {
		return "", f.err
	}
	return f.short, nil
}

func TestHTTPDownloader_Fetch_UnderBudget(t *testing.T) {
	content := bytes.Repeat([]byte("v"), 4000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "test-agent" {
			t.Errorf("User-Agent = %q, want %q", ua, "test-agent")
		}
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Length", "4000")
		w.Write(content)
	}))
	defer server.Close()

	dl := NewHTTPDownloader(testConfig(), nil, nil, testLogger())
	res, err := dl.Fetch(context.Background(), Request{URL: server.URL, FilenameBase: "clip", MaxBytes: 5000})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if res.IsLink() {
		t.Fatal("expected attachment, got link")
	}
	if len(res.Attachment.Data) != 4000 {
		t.Errorf("attachment size = %d, want 4000", len(res.Attachment.Data))
	}
	if res.Attachment.Filename != "clip.mp4" {
		t.Errorf("filename = %q, want %q", res.Attachment.Filename, "clip.mp4")
	}
}

func TestHTTPDownloader_Fetch_AtBudgetLinks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "5000")
		w.Write(bytes.Repeat([]byte("x"), 5000))
	}))
	defer server.Close()

	dl := NewHTTPDownloader(testConfig(), nil, nil, testLogger())
	res, err := dl.Fetch(context.Background(), Request{URL: server.URL, FilenameBase: "big", MaxBytes: 5000})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !res.IsLink() {
		t.Fatal("expected link-only result at budget")
	}
	if res.Link != server.URL {
		t.Errorf("link = %q, want %q", res.Link, server.URL)
	}
}

func TestHTTPDownloader_Fetch_StreamExceedsBudget(t *testing.T) {
	const chunk = 1024
	const budget = 10 * chunk

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "image/jpeg")
		w.WriteHeader(http.StatusOK)
		piece := bytes.Repeat([]byte("s"), chunk)
		for i := 0; i < 100; i++ {
			if _, err := w.Write(piece); err != nil {
				return
			}
			flusher.Flush()
		}
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.ChunkSize = chunk
	dl := NewHTTPDownloader(cfg, nil, nil, testLogger())

	res, err := dl.Fetch(context.Background(), Request{URL: server.URL, FilenameBase: "s", MaxBytes: budget})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !res.IsLink() {
		t.Fatal("expected link-only result when stream exceeds budget")
	}
}

func TestHTTPDownloader_ReadWithin_StopsAfterOneChunk(t *testing.T) {
	dl := NewHTTPDownloader(config.DownloadConfig{ChunkSize: 100}, nil, nil, testLogger())

	src := &trackingReader{r: bytes.NewReader(bytes.Repeat([]byte("a"), 10000))}
	data, fits, err := dl.readWithin(src, 250)
	if err != nil {
		t.Fatalf("readWithin error: %v", err)
	}
	if fits || data != nil {
		t.Fatal("expected budget overflow")
	}
	if src.read > 250+100 {
		t.Errorf("read %d bytes, want at most one chunk past budget (%d)", src.read, 350)
	}
}

func TestHTTPDownloader_ReadWithin_Fits(t *testing.T) {
	dl := NewHTTPDownloader(config.DownloadConfig{ChunkSize: 100}, nil, nil, testLogger())

	data, fits, err := dl.readWithin(strings.NewReader(strings.Repeat("a", 250)), 250)
	if err != nil {
		t.Fatalf("readWithin error: %v", err)
	}
	if !fits || len(data) != 250 {
		t.Errorf("fits = %v, len = %d; want true, 250", fits, len(data))
	}
}

type trackingReader struct {
	r    io.Reader
	read int
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	t.read += n
	return n, err
}

func TestHTTPDownloader_Fetch_FullLengthHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(fullLengthHeader, "999999")
		flusher := w.(http.Flusher)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("partial"))
		flusher.Flush()
	}))
	defer server.Close()

	dl := NewHTTPDownloader(testConfig(), nil, nil, testLogger())
	res, err := dl.Fetch(context.Background(), Request{URL: server.URL, FilenameBase: "p", MaxBytes: 1000})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !res.IsLink() {
		t.Fatal("expected link-only result from vendor length header")
	}
}

func TestHTTPDownloader_Fetch_ExtInference(t *testing.T) {
	tests := []struct {
		contentType string
		ext         string
		want        string
	}{
		{"video/mp4", "", "f.mp4"},
		{"video/mp4; charset=binary", "", "f.mp4"},
		{"image/webp", "", "f.jpg"},
		{"", "", "f.jpg"},
		{"image/jpeg", "mp4", "f.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.contentType+"/"+tt.ext, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.contentType != "" {
					w.Header().Set("Content-Type", tt.contentType)
				}
				w.Write([]byte("data"))
			}))
			defer server.Close()

			dl := NewHTTPDownloader(testConfig(), nil, nil, testLogger())
			res, err := dl.Fetch(context.Background(), Request{URL: server.URL, FilenameBase: "f", Ext: tt.ext, MaxBytes: 100})
			if err != nil {
				t.Fatalf("Fetch failed: %v", err)
			}
			if res.Attachment == nil || res.Attachment.Filename != tt.want {
				t.Errorf("filename = %+v, want %q", res.Attachment, tt.want)
			}
		})
	}
}

func TestHTTPDownloader_Fetch_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("URL signature expired\n"))
	}))
	defer server.Close()

	dl := NewHTTPDownloader(testConfig(), nil, nil, testLogger())
	_, err := dl.Fetch(context.Background(), Request{URL: server.URL, FilenameBase: "x", MaxBytes: 100})

	var derr *domain.DownloadError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DownloadError, got %v", err)
	}
	if derr.Status != http.StatusForbidden {
		t.Errorf("status = %d, want 403", derr.Status)
	}
	if derr.Body != "URL signature expired" {
		t.Errorf("body = %q, want %q", derr.Body, "URL signature expired")
	}
}

func TestHTTPDownloader_Fetch_PreservesEncoding(t *testing.T) {
	var gotURI string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURI = r.RequestURI
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	path := "/v/t51.2885-15/abc%2Bdef%3D.jpg?stp=dst-jpg_e35%2Cp1080&_nc_ht=x%3Dy&oh=00_AfB"
	dl := NewHTTPDownloader(testConfig(), nil, nil, testLogger())
	if _, err := dl.Fetch(context.Background(), Request{URL: server.URL + path, FilenameBase: "x", MaxBytes: 100}); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !strings.HasSuffix(gotURI, path) {
		t.Errorf("request URI = %q, want suffix %q", gotURI, path)
	}
}

func TestHTTPDownloader_Link(t *testing.T) {
	tests := []struct {
		name      string
		shortener *fakeShortener
		spoiler   bool
		want      string
	}{
		{"no shortener", nil, false, "https://cdn.example/v.mp4"},
		{"shortened", &fakeShortener{short: "https://s.example/a"}, false, "https://s.example/a"},
		{"shortener failure falls back", &fakeShortener{err: errors.New("down")}, false, "https://cdn.example/v.mp4"},
		{"spoiler", &fakeShortener{short: "https://s.example/a"}, true, "||https://s.example/a||"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Shortener
			if tt.shortener != nil {
				s = tt.shortener
			}
			dl := NewHTTPDownloader(testConfig(), s, []string{"tag"}, testLogger())
			res := dl.Link(context.Background(), "https://cdn.example/v.mp4", tt.spoiler)
			if !res.IsLink() {
				t.Fatal("expected link result")
			}
			if res.Link != tt.want {
				t.Errorf("link = %q, want %q", res.Link, tt.want)
			}
			if res.Spoiler != tt.spoiler {
				t.Errorf("spoiler = %v, want %v", res.Spoiler, tt.spoiler)
			}
		})
	}
}

func TestShlinkShortener_Shorten(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v3/short-urls" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "k" {
			t.Errorf("missing api key header")
		}
		var body shortenRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.LongURL != "https://long.example/x" || len(body.Tags) != 1 || body.Tags[0] != "linkgrab" {
			t.Errorf("unexpected body: %+v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"shortUrl":"https://s.example/abc"}`))
	}))
	defer server.Close()

	s := NewShortener(config.ShortenerConfig{APIURL: server.URL + "/", APIKey: "k", Timeout: time.Second})
	got, err := s.Shorten(context.Background(), "https://long.example/x", []string{"linkgrab"})
	if err != nil {
		t.Fatalf("Shorten failed: %v", err)
	}
	if got != "https://s.example/abc" {
		t.Errorf("Shorten = %q", got)
	}
}

func TestShlinkShortener_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	s := NewShortener(config.ShortenerConfig{APIURL: server.URL, Timeout: time.Second})
	if _, err := s.Shorten(context.Background(), "https://long.example/x", nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewShortener_Disabled(t *testing.T) {
	if s := NewShortener(config.ShortenerConfig{}); s != nil {
		t.Errorf("expected nil shortener, got %T", s)
	}
}
