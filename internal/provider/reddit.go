package provider

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/iconidentify/linkgrab/internal/config"
	"github.com/iconidentify/linkgrab/internal/domain"
	"github.com/iconidentify/linkgrab/internal/repository"
)

// Remuxer re-containers a remote stream into a local MP4 file.
type Remuxer interface {
	Remux(ctx context.Context, inputURL, outputPath string) error
}

var (
	redditPhotoExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}
	redditVideoExts = map[string]bool{".mp4": true, ".webm": true, ".mov": true}
)

// Reddit resolves posts through the OAuth API. Hosted videos are remuxed from
// their DASH manifest into the remux cache.
type Reddit struct {
	client    *http.Client
	apiBase   string
	userAgent string
	tokens    TokenSource
	remuxer   Remuxer
	cache     repository.RemuxCache
	logger    *slog.Logger
}

// NewReddit creates a Reddit resolver.
func NewReddit(cfg config.RedditConfig, client *http.Client, tokens TokenSource, remuxer Remuxer, cache repository.RemuxCache, logger *slog.Logger) *Reddit {
	if client == nil {
		client = http.DefaultClient
	}
	return &Reddit{
		client:    client,
		apiBase:   strings.TrimRight(cfg.APIBaseURL, "/"),
		userAgent: cfg.UserAgent,
		tokens:    tokens,
		remuxer:   remuxer,
		cache:     cache,
		logger:    logger,
	}
}

func (p *Reddit) Name() string {
	return "reddit-api"
}

type redditListing struct {
	Data struct {
		Children []struct {
			Kind string     `json:"kind"`
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID                  string  `json:"id"`
	Title               string  `json:"title"`
	Author              string  `json:"author"`
	Subreddit           string  `json:"subreddit"`
	CreatedUTC          float64 `json:"created_utc"`
	Permalink           string  `json:"permalink"`
	URL                 string  `json:"url"`
	URLOverriddenByDest string  `json:"url_overridden_by_dest"`
	Domain              string  `json:"domain"`
	IsSelf              bool    `json:"is_self"`
	IsGallery           bool    `json:"is_gallery"`
	IsVideo             bool    `json:"is_video"`
	IsRedditMediaDomain bool    `json:"is_reddit_media_domain"`
	GalleryData         *struct {
		Items []struct {
			MediaID string `json:"media_id"`
		} `json:"items"`
	} `json:"gallery_data"`
	MediaMetadata map[string]redditMediaMetadata `json:"media_metadata"`
	Media         *struct {
		RedditVideo *redditVideo `json:"reddit_video"`
	} `json:"media"`
	CrosspostParentList []redditPost `json:"crosspost_parent_list"`
}

type redditMediaMetadata struct {
	Status string `json:"status"`
	Type   string `json:"e"`
	Mime   string `json:"m"`
	Source struct {
		URL string `json:"u"`
		GIF string `json:"gif"`
		MP4 string `json:"mp4"`
	} `json:"s"`
}

type redditVideo struct {
	FallbackURL string `json:"fallback_url"`
	DashURL     string `json:"dash_url"`
	HLSURL      string `json:"hls_url"`
}

func (p *Reddit) Resolve(ctx context.Context, ref domain.Reference) (*domain.Post, error) {
	if ref.ID == "" {
		return nil, domain.NewUnsupportedError(domain.ProviderReddit, string(ref.Kind)+" reference")
	}

	rp, err := p.fetchPost(ctx, ref.ID)
	if err != nil {
		return nil, err
	}

	// Crossposts carry their media on the original post.
	source := rp
	if len(rp.CrosspostParentList) > 0 {
		source = &rp.CrosspostParentList[0]
	}

	media, err := p.classify(ctx, source)
	if err != nil {
		return nil, err
	}
	if len(media) == 0 {
		return nil, fmt.Errorf("reddit post %s: %w", rp.ID, domain.ErrNoMediaFound)
	}

	return &domain.Post{
		Provider:     domain.ProviderReddit,
		ID:           rp.ID,
		Author:       domain.Author{Username: rp.Author},
		Media:        media,
		Caption:      html.UnescapeString(rp.Title),
		Timestamp:    domain.TimeFromUnix(int64(rp.CreatedUTC)),
		CanonicalURL: "https://www.reddit.com" + rp.Permalink,
		Subreddit:    rp.Subreddit,
	}, nil
}

func (p *Reddit) fetchPost(ctx context.Context, id string) (*redditPost, error) {
	token, err := p.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("reddit auth: %w", err)
	}

	endpoint := p.apiBase + "/api/info?" + url.Values{"id": {"t3_" + id}, "raw_json": {"1"}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("reddit rejected token: %w", domain.ErrExpiredCredential)
	case !isSuccess(resp.StatusCode):
		return nil, &domain.UpstreamError{Provider: domain.ProviderReddit, Status: resp.StatusCode}
	}

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	var listing redditListing
	if err := decodeJSON(domain.ProviderReddit, body, &listing); err != nil {
		return nil, err
	}
	for _, child := range listing.Data.Children {
		if child.Kind == "t3" {
			post := child.Data
			return &post, nil
		}
	}
	return nil, &domain.UpstreamError{Provider: domain.ProviderReddit, Status: resp.StatusCode, Message: "post " + id + " not found"}
}

func (p *Reddit) classify(ctx context.Context, rp *redditPost) ([]domain.MediaItem, error) {
	switch {
	case rp.IsGallery && rp.GalleryData != nil:
		return galleryMedia(rp), nil
	case rp.IsVideo && rp.Media != nil && rp.Media.RedditVideo != nil:
		item, err := p.hostedVideo(ctx, rp.ID, rp.Media.RedditVideo)
		if err != nil {
			return nil, err
		}
		return []domain.MediaItem{item}, nil
	case rp.IsSelf:
		return nil, domain.NewUnsupportedError(domain.ProviderReddit, "text post")
	}

	link := html.UnescapeString(rp.URLOverriddenByDest)
	if link == "" {
		link = html.UnescapeString(rp.URL)
	}
	ext := strings.ToLower(path.Ext(urlPath(link)))

	switch {
	case rp.IsRedditMediaDomain && rp.Domain == "i.redd.it", redditPhotoExts[ext]:
		return []domain.MediaItem{{Kind: domain.MediaKindPhoto, URL: link, Ext: strings.TrimPrefix(ext, ".")}}, nil
	case redditVideoExts[ext]:
		return []domain.MediaItem{{Kind: domain.MediaKindVideo, URL: link, Ext: strings.TrimPrefix(ext, ".")}}, nil
	case link != "":
		return nil, domain.NewUnsupportedError(domain.ProviderReddit, "link post to "+rp.Domain)
	default:
		return nil, domain.NewUnsupportedError(domain.ProviderReddit, "post shape")
	}
}

// galleryMedia lists gallery items in gallery_data order, skipping items
// whose metadata is missing or still processing.
func galleryMedia(rp *redditPost) []domain.MediaItem {
	var media []domain.MediaItem
	for _, gi := range rp.GalleryData.Items {
		meta, ok := rp.MediaMetadata[gi.MediaID]
		if !ok || meta.Status != "valid" {
			continue
		}
		switch {
		case meta.Type == "AnimatedImage" && meta.Source.MP4 != "":
			media = append(media, domain.MediaItem{Kind: domain.MediaKindVideo, URL: html.UnescapeString(meta.Source.MP4), Ext: "mp4"})
		case meta.Type == "AnimatedImage" && meta.Source.GIF != "":
			media = append(media, domain.MediaItem{Kind: domain.MediaKindPhoto, URL: html.UnescapeString(meta.Source.GIF), Ext: "gif"})
		case meta.Source.URL != "":
			media = append(media, domain.MediaItem{Kind: domain.MediaKindPhoto, URL: html.UnescapeString(meta.Source.URL), Ext: mimeExt(meta.Mime)})
		}
	}
	return media
}

// hostedVideo remuxes the DASH manifest into the cache unless a previous
// remux for the post is already there.
func (p *Reddit) hostedVideo(ctx context.Context, postID string, v *redditVideo) (domain.MediaItem, error) {
	item := domain.MediaItem{
		Kind:      domain.MediaKindVideo,
		URL:       html.UnescapeString(v.FallbackURL),
		Ext:       "mp4",
		LocalPath: p.cache.Path(postID),
	}

	exists, err := p.cache.Exists(ctx, postID)
	if err != nil {
		return domain.MediaItem{}, err
	}
	if exists {
		p.logger.Debug("remux cache hit", "post_id", postID)
		return item, nil
	}

	if p.remuxer == nil {
		return domain.MediaItem{}, domain.NewUnsupportedError(domain.ProviderReddit, "hosted video without a remux tool")
	}

	manifest := html.UnescapeString(v.DashURL)
	if manifest == "" {
		manifest = html.UnescapeString(v.HLSURL)
	}
	if manifest == "" {
		return domain.MediaItem{}, errors.New("reddit video has no manifest url")
	}
	if err := p.remuxer.Remux(ctx, manifest, item.LocalPath); err != nil {
		return domain.MediaItem{}, fmt.Errorf("remux reddit video %s: %w", postID, err)
	}
	return item, nil
}

func mimeExt(m string) string {
	switch m {
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	default:
		return "jpg"
	}
}

func urlPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Path
}
