package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/iconidentify/linkgrab/internal/config"
	"github.com/iconidentify/linkgrab/internal/domain"
	"github.com/iconidentify/linkgrab/pkg/shortcode"
)

// Instagram media_type values.
const (
	instagramPhoto    = 1
	instagramVideo    = 2
	instagramCarousel = 8
)

// Instagram resolves posts and stories through the private media-info endpoint
// using a session cookie.
type Instagram struct {
	client    *http.Client
	baseURL   string
	sessionID string
	appID     string
	userAgent string
	logger    *slog.Logger
}

// NewInstagram creates an Instagram resolver.
func NewInstagram(cfg config.InstagramConfig, client *http.Client, logger *slog.Logger) *Instagram {
	if client == nil {
		client = http.DefaultClient
	}
	return &Instagram{
		client:    client,
		baseURL:   cfg.BaseURL,
		sessionID: cfg.SessionID,
		appID:     cfg.AppID,
		userAgent: cfg.UserAgent,
		logger:    logger,
	}
}

func (p *Instagram) Name() string {
	return "instagram-api"
}

type instagramInfo struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Items   []instagramItem `json:"items"`
}

type instagramItem struct {
	Code      string `json:"code"`
	MediaType int    `json:"media_type"`
	TakenAt   int64  `json:"taken_at"`
	User      struct {
		Username      string `json:"username"`
		FullName      string `json:"full_name"`
		ProfilePicURL string `json:"profile_pic_url"`
	} `json:"user"`
	Caption *struct {
		Text string `json:"text"`
	} `json:"caption"`
	ImageVersions2 struct {
		Candidates []struct {
			URL string `json:"url"`
		} `json:"candidates"`
	} `json:"image_versions2"`
	VideoVersions []struct {
		URL string `json:"url"`
	} `json:"video_versions"`
	CarouselMedia []instagramItem `json:"carousel_media"`
}

func (p *Instagram) Resolve(ctx context.Context, ref domain.Reference) (*domain.Post, error) {
	var mediaID, canonical string
	switch ref.Kind {
	case domain.ReferencePost:
		id, err := shortcode.MediaID(ref.ID)
		if err != nil {
			return nil, err
		}
		mediaID = id
		canonical = "https://www.instagram.com/p/" + ref.ID + "/"
	case domain.ReferenceStory:
		if _, err := strconv.ParseUint(ref.ID, 10, 64); err != nil {
			return nil, domain.NewUnsupportedError(domain.ProviderInstagram, "story id "+ref.ID)
		}
		mediaID = ref.ID
		canonical = "https://www.instagram.com/stories/" + ref.Username + "/" + ref.ID + "/"
	default:
		return nil, domain.NewUnsupportedError(domain.ProviderInstagram, string(ref.Kind)+" reference")
	}

	item, err := p.fetchInfo(ctx, mediaID)
	if err != nil {
		return nil, err
	}

	media, err := instagramMedia(item)
	if err != nil {
		return nil, err
	}
	if len(media) == 0 {
		return nil, fmt.Errorf("instagram media %s: %w", mediaID, domain.ErrNoMediaFound)
	}

	post := &domain.Post{
		Provider: domain.ProviderInstagram,
		ID:       mediaID,
		Author: domain.Author{
			Username:    item.User.Username,
			DisplayName: item.User.FullName,
			AvatarURL:   item.User.ProfilePicURL,
		},
		Media:        media,
		Timestamp:    domain.TimeFromUnix(item.TakenAt),
		CanonicalURL: canonical,
	}
	if item.Caption != nil {
		post.Caption = item.Caption.Text
	}
	return post, nil
}

func (p *Instagram) fetchInfo(ctx context.Context, mediaID string) (*instagramItem, error) {
	endpoint := fmt.Sprintf("%s/media/%s/info/", p.baseURL, mediaID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-IG-App-ID", p.appID)
	if p.sessionID != "" {
		req.Header.Set("Cookie", "sessionid="+p.sessionID)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	if !isJSON(resp) {
		// A session the API no longer accepts is answered with the HTML login page.
		if resp.StatusCode < 400 {
			return nil, fmt.Errorf("instagram returned a non-JSON page: %w", domain.ErrExpiredCredential)
		}
		return nil, &domain.UpstreamError{Provider: domain.ProviderInstagram, Status: resp.StatusCode}
	}

	var info instagramInfo
	if err := decodeJSON(domain.ProviderInstagram, body, &info); err != nil {
		return nil, err
	}
	if info.Status == "fail" || (len(info.Items) == 0 && info.Message != "") {
		msg := info.Message
		if msg == "" {
			msg = "request failed"
		}
		return nil, &domain.UpstreamError{Provider: domain.ProviderInstagram, Status: resp.StatusCode, Message: msg}
	}
	if len(info.Items) == 0 {
		return nil, fmt.Errorf("instagram response has no items: %w", domain.ErrExpiredCredential)
	}
	return &info.Items[0], nil
}

// instagramMedia classifies item, recursing into carousel children.
func instagramMedia(item *instagramItem) ([]domain.MediaItem, error) {
	switch item.MediaType {
	case instagramPhoto:
		if len(item.ImageVersions2.Candidates) == 0 {
			return nil, nil
		}
		return []domain.MediaItem{{
			Kind: domain.MediaKindPhoto,
			URL:  item.ImageVersions2.Candidates[0].URL,
			Ext:  "jpg",
		}}, nil
	case instagramVideo:
		if len(item.VideoVersions) == 0 {
			return nil, nil
		}
		return []domain.MediaItem{{
			Kind: domain.MediaKindVideo,
			URL:  item.VideoVersions[0].URL,
			Ext:  "mp4",
		}}, nil
	case instagramCarousel:
		var media []domain.MediaItem
		for i := range item.CarouselMedia {
			child, err := instagramMedia(&item.CarouselMedia[i])
			if err != nil {
				return nil, err
			}
			media = append(media, child...)
		}
		return media, nil
	default:
		return nil, domain.NewUnsupportedError(domain.ProviderInstagram, "media type "+strconv.Itoa(item.MediaType))
	}
}
