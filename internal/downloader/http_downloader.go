package downloader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/iconidentify/linkgrab/internal/config"
	"github.com/iconidentify/linkgrab/internal/domain"
)

// fullLengthHeader is sent by some CDNs instead of Content-Length on compressed or
// chunked responses.
const fullLengthHeader = "X-Full-Image-Content-Length"

// maxErrorBody caps how much of a plain-text error body is kept on DownloadError.
const maxErrorBody = 512

// HTTPDownloader implements Fetcher using HTTP requests.
type HTTPDownloader struct {
	client     *http.Client
	userAgents []string
	chunkSize  int
	shortener  Shortener
	tags       []string
	logger     *slog.Logger
}

// NewHTTPDownloader creates a new budgeted media downloader. shortener may be nil.
func NewHTTPDownloader(cfg config.DownloadConfig, shortener Shortener, tags []string, logger *slog.Logger) *HTTPDownloader {
	agents := cfg.UserAgents
	if len(agents) == 0 {
		agents = config.DefaultUserAgents()
	}
	chunk := cfg.ChunkSize
	if chunk <= 0 {
		chunk = 64 * 1024
	}
	return &HTTPDownloader{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		userAgents: agents,
		chunkSize:  chunk,
		shortener:  shortener,
		tags:       tags,
		logger:     logger,
	}
}

// Fetch downloads the media or falls back to a link when it exceeds the budget.
func (d *HTTPDownloader) Fetch(ctx context.Context, r Request) (domain.FetchResult, error) {
	req, err := newVerbatimRequest(ctx, r.URL)
	if err != nil {
		return domain.FetchResult{}, err
	}
	req.Header.Set("User-Agent", d.userAgent())
	req.Header.Set("Accept", "*/*")

	resp, err := d.client.Do(req)
	if err != nil {
		return domain.FetchResult{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.FetchResult{}, newDownloadError(resp)
	}

	ext := r.Ext
	if ext == "" {
		ext = extFromContentType(resp.Header.Get("Content-Type"))
	}
	filename := r.FilenameBase + "." + ext

	if size, ok := declaredLength(resp); ok {
		if size >= r.MaxBytes {
			d.logger.Debug("media over budget, linking", "size", size, "max_bytes", r.MaxBytes)
			return d.Link(ctx, r.URL, r.Spoiler), nil
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, size))
		if err != nil {
			return domain.FetchResult{}, fmt.Errorf("read body: %w", err)
		}
		return domain.AttachmentResult(data, filename, r.Spoiler), nil
	}

	data, fits, err := d.readWithin(resp.Body, r.MaxBytes)
	if err != nil {
		return domain.FetchResult{}, fmt.Errorf("read body: %w", err)
	}
	if !fits {
		d.logger.Debug("streamed media exceeded budget, linking", "max_bytes", r.MaxBytes)
		return d.Link(ctx, r.URL, r.Spoiler), nil
	}
	return domain.AttachmentResult(data, filename, r.Spoiler), nil
}

// readWithin streams body in fixed-size chunks and stops as soon as the
// accumulated size exceeds maxBytes, so at most one chunk past the budget is held.
func (d *HTTPDownloader) readWithin(body io.Reader, maxBytes int64) ([]byte, bool, error) {
	var buf bytes.Buffer
	chunk := make([]byte, d.chunkSize)
	for {
		n, err := body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			if int64(buf.Len()) > maxBytes {
				return nil, false, nil
			}
		}
		if err == io.EOF {
			return buf.Bytes(), true, nil
		}
		if err != nil {
			return nil, false, err
		}
	}
}

// Link builds a link-only result, shortening the URL when a shortener is configured.
func (d *HTTPDownloader) Link(ctx context.Context, rawURL string, spoiler bool) domain.FetchResult {
	link := rawURL
	if d.shortener != nil {
		short, err := d.shortener.Shorten(ctx, rawURL, d.tags)
		if err != nil {
			d.logger.Warn("shorten failed, using original url", "error", err)
		} else if short != "" {
			link = short
		}
	}
	if spoiler {
		link = "||" + link + "||"
	}
	return domain.LinkResult(link, spoiler)
}

func (d *HTTPDownloader) userAgent() string {
	return d.userAgents[rand.IntN(len(d.userAgents))]
}

// declaredLength reports the body size announced by the response headers.
func declaredLength(resp *http.Response) (int64, bool) {
	if resp.ContentLength >= 0 {
		return resp.ContentLength, true
	}
	if v := resp.Header.Get(fullLengthHeader); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			return n, true
		}
	}
	return 0, false
}

func extFromContentType(ct string) string {
	mediaType, _, err := mime.ParseMediaType(ct)
	if err == nil && mediaType == "video/mp4" {
		return "mp4"
	}
	return "jpg"
}

func newDownloadError(resp *http.Response) *domain.DownloadError {
	derr := &domain.DownloadError{Status: resp.StatusCode}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain") {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		derr.Body = strings.TrimSpace(string(body))
	}
	return derr
}

// newVerbatimRequest builds a GET request that sends rawURL's path and query
// exactly as given. Signed CDN URLs break when their escaping is normalized.
func newVerbatimRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if rawPath := pathOf(rawURL, u); rawPath != "" && rawPath != u.EscapedPath() {
		u.Opaque = "//" + u.Host + rawPath
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.URL = u
	return req, nil
}

// pathOf extracts the undecoded path component of rawURL.
func pathOf(rawURL string, u *url.URL) string {
	rest := rawURL
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	rest = strings.TrimPrefix(rest, u.Host)
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}
