package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/iconidentify/linkgrab/internal/config"
	"github.com/iconidentify/linkgrab/internal/domain"
	"github.com/iconidentify/linkgrab/internal/downloader"
)

// selfLink matches the t.co link a tweet's text carries to itself.
var selfLink = regexp.MustCompile(`^https://t\.co/\w+$`)

// Twitter resolves tweets through an FxTwitter/VxTwitter style aggregator API.
type Twitter struct {
	client  *http.Client
	baseURL string
	retry   downloader.RetryConfig
	logger  *slog.Logger
}

// NewTwitter creates a Twitter resolver.
func NewTwitter(cfg config.TwitterConfig, client *http.Client, logger *slog.Logger) *Twitter {
	if client == nil {
		client = http.DefaultClient
	}
	return &Twitter{
		client:  client,
		baseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		retry: downloader.RetryConfig{
			MaxAttempts: cfg.MaxAttempts,
			Delay:       cfg.RetryDelay,
		},
		logger: logger,
	}
}

func (p *Twitter) Name() string {
	return "twitter-aggregator"
}

// twitterResponse covers both aggregator shapes. FxTwitter nests the tweet
// under "tweet"; VxTwitter returns it flat with "media_extended".
type twitterResponse struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Tweet   *fxTweet `json:"tweet"`

	TweetID             string    `json:"tweetID"`
	Text                string    `json:"text"`
	DateEpoch           int64     `json:"date_epoch"`
	UserName            string    `json:"user_name"`
	UserScreenName      string    `json:"user_screen_name"`
	UserProfileImageURL string    `json:"user_profile_image_url"`
	TweetURL            string    `json:"tweetURL"`
	MediaExtended       []vxMedia `json:"media_extended"`
}

type fxTweet struct {
	ID               string `json:"id"`
	URL              string `json:"url"`
	Text             string `json:"text"`
	CreatedTimestamp int64  `json:"created_timestamp"`
	Author           struct {
		Name       string `json:"name"`
		ScreenName string `json:"screen_name"`
		AvatarURL  string `json:"avatar_url"`
	} `json:"author"`
	Media *struct {
		All []struct {
			Type string `json:"type"`
			URL  string `json:"url"`
		} `json:"all"`
		External *struct {
			URL string `json:"url"`
		} `json:"external"`
	} `json:"media"`
}

type vxMedia struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

func (p *Twitter) Resolve(ctx context.Context, ref domain.Reference) (*domain.Post, error) {
	if ref.ID == "" {
		return nil, domain.NewUnsupportedError(domain.ProviderTwitter, string(ref.Kind)+" reference")
	}

	body, err := downloader.Retry(ctx, p.retry, func(attempt int) ([]byte, error) {
		body, err := p.fetch(ctx, ref.ID)
		if err != nil {
			p.logger.Debug("aggregator request failed", "tweet_id", ref.ID, "attempt", attempt, "error", err)
		}
		return body, err
	}, isStatusError)
	if err != nil {
		return nil, err
	}

	var tr twitterResponse
	if err := decodeJSON(domain.ProviderTwitter, body, &tr); err != nil {
		return nil, err
	}

	var post *domain.Post
	switch {
	case tr.Tweet != nil:
		post = fxPost(ref.ID, tr.Tweet)
	case tr.TweetID != "" || len(tr.MediaExtended) > 0:
		post = vxPost(ref.ID, &tr)
	case tr.Message != "":
		return nil, &domain.UpstreamError{Provider: domain.ProviderTwitter, Message: tr.Message}
	default:
		return nil, &domain.UpstreamError{Provider: domain.ProviderTwitter, Message: "unrecognized response"}
	}

	if !post.HasMedia() {
		return nil, fmt.Errorf("tweet %s: %w", ref.ID, domain.ErrNoMediaFound)
	}
	return post, nil
}

func (p *Twitter) fetch(ctx context.Context, id string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/status/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "linkgrab")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, &domain.UpstreamError{Provider: domain.ProviderTwitter, Status: resp.StatusCode}
	}
	return readBody(resp)
}

// isStatusError limits retries to non-success HTTP statuses.
func isStatusError(err error) bool {
	var upstream *domain.UpstreamError
	return errors.As(err, &upstream) && upstream.Status != 0
}

func fxPost(id string, t *fxTweet) *domain.Post {
	post := &domain.Post{
		Provider: domain.ProviderTwitter,
		ID:       id,
		Author: domain.Author{
			Username:    t.Author.ScreenName,
			DisplayName: t.Author.Name,
			AvatarURL:   t.Author.AvatarURL,
		},
		Caption:      stripSelfLink(t.Text),
		Timestamp:    domain.TimeFromUnix(t.CreatedTimestamp),
		CanonicalURL: t.URL,
	}
	if post.CanonicalURL == "" {
		post.CanonicalURL = canonicalTweetURL(t.Author.ScreenName, id)
	}
	if t.Media != nil {
		for _, m := range t.Media.All {
			post.Media = append(post.Media, tweetMedia(m.Type, m.URL))
		}
		if t.Media.External != nil && t.Media.External.URL != "" {
			post.ExternalLinks = append(post.ExternalLinks, t.Media.External.URL)
		}
	}
	return post
}

func vxPost(id string, r *twitterResponse) *domain.Post {
	post := &domain.Post{
		Provider: domain.ProviderTwitter,
		ID:       id,
		Author: domain.Author{
			Username:    r.UserScreenName,
			DisplayName: r.UserName,
			AvatarURL:   r.UserProfileImageURL,
		},
		Caption:      stripSelfLink(r.Text),
		Timestamp:    domain.TimeFromUnix(r.DateEpoch),
		CanonicalURL: r.TweetURL,
	}
	if post.CanonicalURL == "" {
		post.CanonicalURL = canonicalTweetURL(r.UserScreenName, id)
	}
	for _, m := range r.MediaExtended {
		post.Media = append(post.Media, tweetMedia(m.Type, m.URL))
	}
	return post
}

// tweetMedia maps aggregator media types onto attachments: video and gif are
// served as mp4, everything else as jpg.
func tweetMedia(typ, u string) domain.MediaItem {
	switch typ {
	case "video", "gif":
		return domain.MediaItem{Kind: domain.MediaKindVideo, URL: u, Ext: "mp4"}
	default:
		return domain.MediaItem{Kind: domain.MediaKindPhoto, URL: u, Ext: "jpg"}
	}
}

// stripSelfLink drops the trailing t.co word, or the whole caption when that
// word is all there is.
func stripSelfLink(text string) string {
	text = strings.TrimSpace(text)
	if selfLink.MatchString(text) {
		return ""
	}
	i := strings.LastIndexAny(text, " \t\n")
	if i >= 0 && selfLink.MatchString(text[i+1:]) {
		return strings.TrimSpace(text[:i])
	}
	return text
}

func canonicalTweetURL(user, id string) string {
	if user == "" {
		user = "i"
	}
	return "https://twitter.com/" + user + "/status/" + id
}
