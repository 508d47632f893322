package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/iconidentify/linkgrab/internal/assembler"
	"github.com/iconidentify/linkgrab/internal/domain"
	"github.com/iconidentify/linkgrab/internal/downloader"
	"github.com/iconidentify/linkgrab/internal/extractor"
	"github.com/iconidentify/linkgrab/internal/provider"
	"github.com/iconidentify/linkgrab/internal/repository"
)

// ReferenceExpander turns one extracted reference into the references it stands
// for. Instagram share links are the only references that need it.
type ReferenceExpander interface {
	Expand(ctx context.Context, ref domain.Reference) ([]domain.Reference, error)
}

// EmbedRequest is one chat message to turn into embeds.
type EmbedRequest struct {
	Text string `json:"text"`
	// MaxBytes is the channel's attachment budget. Zero uses the configured default.
	MaxBytes    int64  `json:"max_attachment_bytes"`
	Spoiler     bool   `json:"spoiler"`
	RequesterID string `json:"requester_id"`
}

// EmbedResult is the outcome for one reference. Exactly one of Response and Err is set.
type EmbedResult struct {
	Reference domain.Reference
	Post      *domain.Post
	Response  *domain.Response
	Err       error
}

// EmbedService runs the extract, resolve, fetch and assemble pipeline.
type EmbedService struct {
	extractors      []extractor.Extractor
	expander        ReferenceExpander
	resolvers       map[domain.Provider]provider.Resolver
	fetcher         downloader.Fetcher
	assembler       *assembler.Assembler
	events          domain.EventEmitter
	local           repository.RemuxCache
	defaultMaxBytes int64
	logger          *slog.Logger
}

// NewEmbedService creates the pipeline. expander, events and local may be nil.
// Without local, media produced on disk is linked instead of attached.
func NewEmbedService(
	extractors []extractor.Extractor,
	expander ReferenceExpander,
	resolvers map[domain.Provider]provider.Resolver,
	fetcher downloader.Fetcher,
	asm *assembler.Assembler,
	events domain.EventEmitter,
	local repository.RemuxCache,
	defaultMaxBytes int64,
	logger *slog.Logger,
) *EmbedService {
	return &EmbedService{
		extractors:      extractors,
		expander:        expander,
		resolvers:       resolvers,
		fetcher:         fetcher,
		assembler:       asm,
		events:          events,
		local:           local,
		defaultMaxBytes: defaultMaxBytes,
		logger:          logger,
	}
}

// Extract finds every supported reference in text, in order of appearance, and
// expands share links. When some links fail to parse the references that did
// parse are returned together with the joined failures. No references and no
// failures yields domain.ErrNoLinks.
func (s *EmbedService) Extract(ctx context.Context, text string) ([]domain.Reference, error) {
	refs, extractErr := extractor.ExtractAll(text, s.extractors...)

	expanded := make([][]domain.Reference, len(refs))
	expandErrs := make([]error, len(refs))
	var g errgroup.Group
	for i, ref := range refs {
		if s.expander == nil || ref.Kind != domain.ReferenceShare {
			expanded[i] = []domain.Reference{ref}
			continue
		}
		g.Go(func() error {
			out, err := s.expander.Expand(ctx, ref)
			if err != nil {
				s.logger.Warn("share link expansion failed", "reference", ref.String(), "error", err)
				expandErrs[i] = err
				return nil
			}
			for j := range out {
				out[j].Offset = ref.Offset
			}
			expanded[i] = out
			return nil
		})
	}
	_ = g.Wait()

	var out []domain.Reference
	for _, group := range expanded {
		out = append(out, group...)
	}
	err := errors.Join(append([]error{extractErr}, expandErrs...)...)

	if len(out) == 0 && err == nil {
		return nil, domain.ErrNoLinks
	}
	return out, err
}

// Resolve resolves ref with the resolver registered for its provider.
func (s *EmbedService) Resolve(ctx context.Context, ref domain.Reference) (*domain.Post, error) {
	r, ok := s.resolvers[ref.Provider]
	if !ok {
		return nil, domain.NewUnsupportedError(ref.Provider, "provider")
	}

	post, err := r.Resolve(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", ref, err)
	}
	if post == nil || !post.HasMedia() {
		return nil, fmt.Errorf("resolve %s: %w", ref, domain.ErrNoMediaFound)
	}
	return post, nil
}

// Embed builds one response per reference found in req.Text. References are
// processed concurrently; a failure for one reference is reported in its
// result and never affects the others. Links that failed to parse are
// reported as results without a reference after the parsed ones.
func (s *EmbedService) Embed(ctx context.Context, req EmbedRequest) ([]EmbedResult, error) {
	refs, extractErr := s.Extract(ctx, req.Text)
	if len(refs) == 0 {
		return nil, extractErr
	}
	if req.MaxBytes <= 0 {
		req.MaxBytes = s.defaultMaxBytes
	}

	results := make([]EmbedResult, len(refs))
	var g errgroup.Group
	for i, ref := range refs {
		g.Go(func() error {
			results[i] = s.embedOne(ctx, ref, req)
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range splitJoined(extractErr) {
		results = append(results, EmbedResult{Err: err})
	}
	return results, nil
}

func (s *EmbedService) embedOne(ctx context.Context, ref domain.Reference, req EmbedRequest) EmbedResult {
	logger := s.logger.With("provider", ref.Provider, "reference", ref.String())
	result := EmbedResult{Reference: ref}

	post, err := s.Resolve(ctx, ref)
	if err != nil {
		logger.Warn("resolve failed", "error", err, "kind", domain.KindOf(err))
		s.emitFailure(ref, err)
		result.Err = err
		return result
	}
	result.Post = post

	fetched, err := s.fetchAll(ctx, post, req)
	if err != nil {
		logger.Warn("fetch failed", "post_id", post.ID, "error", err)
		result.Err = err
		return result
	}

	resp := s.assembler.Assemble(post, fetched, req.RequesterID)
	result.Response = &resp

	attachments := 0
	for _, r := range fetched {
		if !r.IsLink() {
			attachments++
		}
	}
	logger.Info("post embedded", "post_id", post.ID, "attachments", attachments, "links", len(fetched)-attachments)
	s.emit(domain.EventSeveritySuccess, domain.EventCategoryEmbed, ref.Provider, "post embedded", domain.EventMetadata{
		"post_id":     post.ID,
		"attachments": attachments,
		"links":       len(fetched) - attachments,
		"payloads":    1 + len(resp.FollowUps),
	})
	return result
}

// Fetch downloads a resolved post's media within maxBytes, falling back to
// links the same way Embed does. Zero maxBytes uses the configured default.
func (s *EmbedService) Fetch(ctx context.Context, post *domain.Post, maxBytes int64, spoiler bool) ([]domain.FetchResult, error) {
	if maxBytes <= 0 {
		maxBytes = s.defaultMaxBytes
	}
	return s.fetchAll(ctx, post, EmbedRequest{MaxBytes: maxBytes, Spoiler: spoiler})
}

// fetchAll fetches every media item concurrently. Results keep media order and
// are followed by the post's external links.
func (s *EmbedService) fetchAll(ctx context.Context, post *domain.Post, req EmbedRequest) ([]domain.FetchResult, error) {
	results := make([]domain.FetchResult, len(post.Media), len(post.Media)+len(post.ExternalLinks))

	g, gctx := errgroup.WithContext(ctx)
	for i, item := range post.Media {
		g.Go(func() error {
			r, err := s.fetchItem(gctx, post, filenameBase(post, i), item, req)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, link := range post.ExternalLinks {
		results = append(results, s.fetcher.Link(ctx, link, req.Spoiler))
	}
	return results, nil
}

func (s *EmbedService) fetchItem(ctx context.Context, post *domain.Post, base string, item domain.MediaItem, req EmbedRequest) (domain.FetchResult, error) {
	if item.LocalPath != "" {
		return s.fetchLocal(ctx, post, base, item, req), nil
	}

	r, err := s.fetcher.Fetch(ctx, downloader.Request{
		URL:          item.URL,
		FilenameBase: base,
		Ext:          item.Ext,
		MaxBytes:     req.MaxBytes,
		Spoiler:      req.Spoiler,
	})
	if err == nil {
		if r.IsLink() {
			s.emitFallback(post, "media over attachment budget", nil)
		}
		return r, nil
	}
	if ctx.Err() != nil {
		return domain.FetchResult{}, ctx.Err()
	}

	s.logger.Warn("download failed, linking media", "provider", post.Provider, "post_id", post.ID, "error", err)
	s.emitFallback(post, "download failed", err)
	return s.fetcher.Link(ctx, item.URL, req.Spoiler), nil
}

// fetchLocal attaches a file produced on local disk, or links the item's
// remote URL when the file is over budget or unreadable.
func (s *EmbedService) fetchLocal(ctx context.Context, post *domain.Post, base string, item domain.MediaItem, req EmbedRequest) domain.FetchResult {
	data, err := s.readLocal(item.LocalPath, req.MaxBytes)
	if errors.Is(err, errOverBudget) {
		s.emitFallback(post, "media over attachment budget", nil)
		return s.fetcher.Link(ctx, item.URL, req.Spoiler)
	}
	if err != nil {
		s.logger.Warn("read local media failed, linking", "path", item.LocalPath, "error", err)
		s.emitFallback(post, "local media unreadable", err)
		return s.fetcher.Link(ctx, item.URL, req.Spoiler)
	}

	ext := item.Ext
	if ext == "" {
		ext = "mp4"
	}
	return domain.AttachmentResult(data, base+"."+ext, req.Spoiler)
}

var errOverBudget = errors.New("over attachment budget")

func (s *EmbedService) readLocal(path string, maxBytes int64) ([]byte, error) {
	if s.local == nil {
		return nil, errors.New("no local media store")
	}
	rc, size, err := s.local.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	if size >= maxBytes {
		return nil, errOverBudget
	}
	data, err := io.ReadAll(io.LimitReader(rc, maxBytes))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) >= maxBytes {
		return nil, errOverBudget
	}
	return data, nil
}

func filenameBase(post *domain.Post, index int) string {
	if len(post.Media) == 1 {
		return fmt.Sprintf("%s_%s", post.Provider, post.ID)
	}
	return fmt.Sprintf("%s_%s_%d", post.Provider, post.ID, index+1)
}

func (s *EmbedService) emitFailure(ref domain.Reference, err error) {
	meta := domain.EventMetadata{"reference": ref.String(), "error": err.Error()}
	switch domain.KindOf(err) {
	case domain.ErrorKindCredential:
		s.emit(domain.EventSeverityError, domain.EventCategoryAuth, ref.Provider, "upstream credential expired", meta)
	case domain.ErrorKindUpstream:
		var upstream *domain.UpstreamError
		if errors.As(err, &upstream) && upstream.Status != 0 {
			meta["status"] = upstream.Status
		}
		s.emit(domain.EventSeverityWarning, domain.EventCategoryResolve, ref.Provider, "upstream error", meta)
	case domain.ErrorKindCommand:
		s.emit(domain.EventSeverityWarning, domain.EventCategoryResolve, ref.Provider, "remux failed", meta)
	}
}

func (s *EmbedService) emitFallback(post *domain.Post, reason string, err error) {
	meta := domain.EventMetadata{"post_id": post.ID, "reason": reason}
	if err != nil {
		meta["error"] = err.Error()
	}
	s.emit(domain.EventSeverityInfo, domain.EventCategoryDownload, post.Provider, "linked media instead of attaching", meta)
}

func (s *EmbedService) emit(severity domain.EventSeverity, category domain.EventCategory, p domain.Provider, msg string, meta domain.EventMetadata) {
	if s.events == nil {
		return
	}
	s.events.Emit(domain.Event{
		Severity: severity,
		Category: category,
		Provider: p,
		Message:  msg,
		Metadata: meta.ToJSON(),
	})
}

// splitJoined flattens an errors.Join result into its parts.
func splitJoined(err error) []error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []error
		for _, e := range joined.Unwrap() {
			out = append(out, splitJoined(e)...)
		}
		return out
	}
	return []error{err}
}
