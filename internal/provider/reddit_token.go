package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/iconidentify/linkgrab/internal/config"
	"github.com/iconidentify/linkgrab/internal/domain"
)

// TokenSource provides bearer tokens for API calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// RedditTokenSource caches a Reddit application-only OAuth token process-wide.
//
// The token starts out expired, so the first request authenticates. Concurrent
// callers that observe an expired token each authenticate and the last write
// wins; the mutex only guards the cached fields.
type RedditTokenSource struct {
	cfg    config.RedditConfig
	hc     *http.Client
	now    func() time.Time
	logger *slog.Logger

	mu          sync.Mutex
	accessToken string
	expiresAt   int64
}

// NewRedditTokenSource creates a token source using the client-credentials grant.
func NewRedditTokenSource(cfg config.RedditConfig, hc *http.Client, logger *slog.Logger) *RedditTokenSource {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &RedditTokenSource{
		cfg:    cfg,
		hc:     hc,
		now:    time.Now,
		logger: logger,
	}
}

// Token returns the cached token, authenticating first when it has expired.
func (s *RedditTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	token := s.accessToken
	exp := s.expiresAt
	s.mu.Unlock()

	if token != "" && s.now().Unix() < exp {
		return token, nil
	}

	token, exp, err := s.authenticate(ctx)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.accessToken = token
	s.expiresAt = exp
	s.mu.Unlock()

	return token, nil
}

type redditTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Error       string `json:"error"`
}

func (s *RedditTokenSource) authenticate(ctx context.Context) (string, int64, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.SetBasicAuth(s.cfg.ClientID, s.cfg.ClientSecret)

	resp, err := s.hc.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", 0, fmt.Errorf("reddit token endpoint returned %d: %w", resp.StatusCode, domain.ErrExpiredCredential)
	}
	if !isSuccess(resp.StatusCode) {
		return "", 0, &domain.UpstreamError{Provider: domain.ProviderReddit, Status: resp.StatusCode}
	}

	var tr redditTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", 0, fmt.Errorf("decode token response: %w", err)
	}
	if tr.Error != "" {
		return "", 0, fmt.Errorf("reddit token endpoint: %s: %w", tr.Error, domain.ErrExpiredCredential)
	}
	if tr.AccessToken == "" {
		return "", 0, fmt.Errorf("token response missing access_token")
	}

	s.logger.Debug("reddit token refreshed", "expires_in", tr.ExpiresIn)
	return tr.AccessToken, s.now().Unix() + tr.ExpiresIn, nil
}
