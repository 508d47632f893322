package downloader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/iconidentify/linkgrab/internal/config"
)

// ShlinkShortener shortens URLs through a Shlink-compatible REST API.
type ShlinkShortener struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
}

// NewShortener returns a shortener for cfg, or nil when shortening is disabled.
func NewShortener(cfg config.ShortenerConfig) Shortener {
	if cfg.APIURL == "" {
		return nil
	}
	return &ShlinkShortener{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		apiKey:     cfg.APIKey,
	}
}

type shortenRequest struct {
	LongURL      string   `json:"longUrl"`
	Tags         []string `json:"tags,omitempty"`
	FindIfExists bool     `json:"findIfExists"`
}

type shortenResponse struct {
	ShortURL string `json:"shortUrl"`
}

// Shorten creates (or reuses) a short URL for longURL.
func (s *ShlinkShortener) Shorten(ctx context.Context, longURL string, tags []string) (string, error) {
	body, err := json.Marshal(shortenRequest{LongURL: longURL, Tags: tags, FindIfExists: true})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/rest/v3/short-urls", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Api-Key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("shortener error (status %d): %s", resp.StatusCode, string(msg))
	}

	var out shortenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.ShortURL == "" {
		return "", fmt.Errorf("shortener response missing shortUrl")
	}
	return out.ShortURL, nil
}
