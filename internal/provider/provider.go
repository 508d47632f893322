// Package provider resolves post references into normalized posts by calling
// upstream APIs and scrapers.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/iconidentify/linkgrab/internal/domain"
)

// maxResponseBody caps upstream API bodies read into memory.
const maxResponseBody = 10 << 20

// Resolver turns one reference into a Post.
type Resolver interface {
	// Name identifies the resolver in logs.
	Name() string
	Resolve(ctx context.Context, ref domain.Reference) (*domain.Post, error)
}

// Chain tries resolvers in priority order. The first success wins; failures
// are logged and swallowed until every resolver has failed, then the last
// failure is returned.
type Chain struct {
	name      string
	resolvers []Resolver
	logger    *slog.Logger
}

// NewChain creates a resolver chain.
func NewChain(name string, logger *slog.Logger, resolvers ...Resolver) *Chain {
	return &Chain{name: name, resolvers: resolvers, logger: logger}
}

func (c *Chain) Name() string {
	return c.name
}

func (c *Chain) Resolve(ctx context.Context, ref domain.Reference) (*domain.Post, error) {
	lastErr := fmt.Errorf("%s: no resolvers configured", c.name)
	for _, r := range c.resolvers {
		post, err := r.Resolve(ctx, ref)
		if err == nil {
			return post, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		c.logger.Warn("resolver failed",
			"resolver", r.Name(),
			"reference", ref.String(),
			"error", err,
		)
		lastErr = err
	}
	return nil, lastErr
}

// isJSON reports whether the response declares a JSON body.
func isJSON(resp *http.Response) bool {
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return err == nil && (mediaType == "application/json" || mediaType == "text/javascript")
}

// readBody reads at most maxResponseBody bytes of resp.
func readBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

// decodeJSON unmarshals body into v, wrapping syntax errors with the provider name.
func decodeJSON(provider domain.Provider, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		var syntax *json.SyntaxError
		if errors.As(err, &syntax) {
			return fmt.Errorf("%s: malformed response: %w", provider, err)
		}
		return fmt.Errorf("%s: decode response: %w", provider, err)
	}
	return nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
