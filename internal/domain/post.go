package domain

import (
	"time"
)

// Provider identifies the social-media site a post came from.
type Provider string

const (
	ProviderInstagram Provider = "instagram"
	ProviderTikTok    Provider = "tiktok"
	ProviderReddit    Provider = "reddit"
	ProviderTwitter   Provider = "twitter"
)

// String returns the string representation of the Provider.
func (p Provider) String() string {
	return string(p)
}

// DisplayName returns the human-readable provider name used on link buttons.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderInstagram:
		return "Instagram"
	case ProviderTikTok:
		return "TikTok"
	case ProviderReddit:
		return "Reddit"
	case ProviderTwitter:
		return "Twitter"
	default:
		return string(p)
	}
}

// MediaKind represents the type of a media item.
type MediaKind string

const (
	MediaKindPhoto MediaKind = "photo"
	MediaKindVideo MediaKind = "video"
)

// MediaItem is a single photo or video belonging to a post.
type MediaItem struct {
	Kind MediaKind `json:"kind"`
	URL  string    `json:"url"`
	// Ext forces the attachment extension. Empty means infer from Content-Type.
	Ext string `json:"ext,omitempty"`
	// LocalPath is set when the media was produced on local disk (remuxed video).
	// URL then holds the remote fallback used for link-only delivery.
	LocalPath string `json:"local_path,omitempty"`
}

// Author represents the post author as reported by the upstream.
type Author struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Post is the normalized, provider-independent description of a social-media post.
type Post struct {
	Provider     Provider    `json:"provider"`
	ID           string      `json:"id"`
	Author       Author      `json:"author"`
	Media        []MediaItem `json:"media"`
	Caption      string      `json:"caption,omitempty"`
	Timestamp    *time.Time  `json:"timestamp,omitempty"`
	CanonicalURL string      `json:"canonical_url"`
	Subreddit    string      `json:"subreddit,omitempty"`
	// ExternalLinks are oversized or off-platform media the upstream only exposes as links.
	ExternalLinks []string `json:"external_links,omitempty"`
}

// HasMedia returns true if the post contains any media.
func (p *Post) HasMedia() bool {
	return len(p.Media) > 0 || len(p.ExternalLinks) > 0
}

// HasVideo returns true if the post contains a video.
func (p *Post) HasVideo() bool {
	for _, m := range p.Media {
		if m.Kind == MediaKindVideo {
			return true
		}
	}
	return false
}

// UnixTimestamp returns the post timestamp in seconds, or 0 when unknown.
func (p *Post) UnixTimestamp() int64 {
	if p.Timestamp == nil {
		return 0
	}
	return p.Timestamp.Unix()
}

// TimeFromUnix converts an upstream unix-seconds value into an optional time.
func TimeFromUnix(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
