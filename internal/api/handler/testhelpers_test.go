package handler

import (
	"context"
	"io"
	"log/slog"

	"github.com/iconidentify/linkgrab/internal/service"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeEmbedder struct {
	results []service.EmbedResult
	err     error
	got     service.EmbedRequest
}

func (f *fakeEmbedder) Embed(ctx context.Context, req service.EmbedRequest) ([]service.EmbedResult, error) {
	f.got = req
	return f.results, f.err
}
