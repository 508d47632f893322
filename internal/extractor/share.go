package extractor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/iconidentify/linkgrab/internal/domain"
)

// ShareExpander resolves Instagram share links by following their redirects
// and re-parsing the final URL.
type ShareExpander struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

// NewShareExpander creates a share expander. A nil client uses http.DefaultClient.
func NewShareExpander(client *http.Client, userAgent string, logger *slog.Logger) *ShareExpander {
	if client == nil {
		client = http.DefaultClient
	}
	return &ShareExpander{client: client, userAgent: userAgent, logger: logger}
}

// Expand returns the references behind a share reference. Any other reference
// is returned unchanged.
func (s *ShareExpander) Expand(ctx context.Context, ref domain.Reference) ([]domain.Reference, error) {
	if ref.Kind != domain.ReferenceShare {
		return []domain.Reference{ref}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("follow share link: %w", err)
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	resp.Body.Close()

	final := resp.Request.URL.String()
	s.logger.Debug("share link expanded", "from", ref.URL, "to", final)

	refs, err := parseInstagramURLs(final)
	if err != nil {
		return nil, err
	}
	var out []domain.Reference
	for _, r := range refs {
		if r.Kind == domain.ReferenceShare {
			continue
		}
		r.Offset = ref.Offset
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, domain.NewUnsupportedError(domain.ProviderInstagram, "share link target "+final)
	}
	return out, nil
}
