package provider

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/iconidentify/linkgrab/internal/config"
	"github.com/iconidentify/linkgrab/internal/domain"
)

// tiktokErrors are page fragments the scraper shows instead of a result.
var tiktokErrors = []string{
	"Video is private or removed",
	"Submitted Url is Invalid",
	"This video is currently not available",
	"Video not found",
}

// TikTok resolves videos through a third-party download site. The site's
// submission form is scraped once and reused until a request fails.
type TikTok struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger

	mu   sync.Mutex
	form *scrapeForm
}

type scrapeForm struct {
	action   string
	urlField string
	fields   url.Values
}

// NewTikTok creates a TikTok resolver. client may be nil; it gets a cookie jar
// either way since the form token is tied to the session cookie.
func NewTikTok(cfg config.TikTokConfig, client *http.Client, logger *slog.Logger) *TikTok {
	var c http.Client
	if client != nil {
		c = *client
	} else {
		c.Timeout = 30 * time.Second
	}
	if c.Jar == nil {
		jar, _ := cookiejar.New(nil)
		c.Jar = jar
	}
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &TikTok{
		client:  &c,
		baseURL: strings.TrimRight(cfg.ScraperURL, "/"),
		logger:  logger,
	}
}

func (p *TikTok) Name() string {
	return "tiktok-scraper"
}

func (p *TikTok) Resolve(ctx context.Context, ref domain.Reference) (*domain.Post, error) {
	if ref.URL == "" {
		return nil, domain.NewUnsupportedError(domain.ProviderTikTok, string(ref.Kind)+" reference")
	}

	post, err := p.resolve(ctx, ref)
	if err != nil {
		p.invalidate()
		return nil, err
	}
	return post, nil
}

func (p *TikTok) resolve(ctx context.Context, ref domain.Reference) (*domain.Post, error) {
	form, err := p.warmUp(ctx)
	if err != nil {
		return nil, err
	}

	values := url.Values{}
	for k, v := range form.fields {
		values[k] = append([]string(nil), v...)
	}
	values.Set(form.urlField, ref.URL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, form.action, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Origin", p.baseURL)
	req.Header.Set("Referer", p.baseURL+"/en")

	body, err := p.do(req)
	if err != nil {
		return nil, err
	}

	page := string(body)
	for _, marker := range tiktokErrors {
		if strings.Contains(page, marker) {
			return nil, fmt.Errorf("tiktok: %s: %w", marker, domain.ErrNoMediaFound)
		}
	}

	return parseTikTokResult(body, ref)
}

// do sends req, following a redirect only when it carries a body. An empty
// redirect is how the scraper reports a video it cannot fetch.
func (p *TikTok) do(req *http.Request) ([]byte, error) {
	for hops := 0; ; hops++ {
		resp, err := p.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("send request: %w", err)
		}
		body, err := readBody(resp)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}

		switch {
		case resp.StatusCode >= 300 && resp.StatusCode < 400:
			loc, lerr := resp.Location()
			if len(bytes.TrimSpace(body)) == 0 || lerr != nil || hops >= 5 {
				return nil, fmt.Errorf("tiktok scraper redirected without a result: %w", domain.ErrNoMediaFound)
			}
			next, err := http.NewRequestWithContext(req.Context(), http.MethodGet, loc.String(), nil)
			if err != nil {
				return nil, fmt.Errorf("create request: %w", err)
			}
			req = next
		case !isSuccess(resp.StatusCode):
			return nil, &domain.UpstreamError{Provider: domain.ProviderTikTok, Status: resp.StatusCode}
		default:
			return body, nil
		}
	}
}

// warmUp returns the cached submission form, scraping it when absent.
func (p *TikTok) warmUp(ctx context.Context) (*scrapeForm, error) {
	p.mu.Lock()
	form := p.form
	p.mu.Unlock()
	if form != nil {
		return form, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/en", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch scraper form: %w", err)
	}
	defer resp.Body.Close()
	if !isSuccess(resp.StatusCode) {
		return nil, &domain.UpstreamError{Provider: domain.ProviderTikTok, Status: resp.StatusCode, Message: "scraper form unavailable"}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse scraper form: %w", err)
	}
	form, err = parseScrapeForm(doc, resp.Request.URL)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.form = form
	p.mu.Unlock()
	p.logger.Debug("tiktok scraper form cached", "action", form.action)
	return form, nil
}

func (p *TikTok) invalidate() {
	p.mu.Lock()
	p.form = nil
	p.mu.Unlock()
}

func parseScrapeForm(doc *goquery.Document, base *url.URL) (*scrapeForm, error) {
	sel := doc.Find("form").First()
	if sel.Length() == 0 {
		return nil, &domain.UpstreamError{Provider: domain.ProviderTikTok, Message: "scraper page has no form"}
	}

	action, _ := sel.Attr("action")
	actionURL, err := base.Parse(action)
	if err != nil {
		return nil, fmt.Errorf("parse form action: %w", err)
	}

	form := &scrapeForm{action: actionURL.String(), fields: url.Values{}}
	sel.Find("input").Each(func(_ int, in *goquery.Selection) {
		name, ok := in.Attr("name")
		if !ok || name == "" {
			return
		}
		typ, _ := in.Attr("type")
		if form.urlField == "" && (typ == "" || typ == "text" || typ == "url") {
			form.urlField = name
			return
		}
		value, _ := in.Attr("value")
		form.fields.Set(name, value)
	})
	if form.urlField == "" {
		return nil, &domain.UpstreamError{Provider: domain.ProviderTikTok, Message: "scraper form has no url input"}
	}
	return form, nil
}

func parseTikTokResult(body []byte, ref domain.Reference) (*domain.Post, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse result page: %w", err)
	}

	var videoURL string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		event, _ := a.Attr("data-event")
		href, _ := a.Attr("href")
		if strings.HasPrefix(href, "http") && (strings.HasSuffix(event, "download_click") || a.HasClass("download")) {
			videoURL = href
			return false
		}
		return true
	})
	if videoURL == "" {
		return nil, fmt.Errorf("tiktok result page has no download link: %w", domain.ErrNoMediaFound)
	}

	username := strings.TrimPrefix(strings.TrimSpace(doc.Find(".video-author b").First().Text()), "@")
	avatar, _ := doc.Find(".img-area img").First().Attr("src")

	return &domain.Post{
		Provider: domain.ProviderTikTok,
		ID:       ref.ID,
		Author: domain.Author{
			Username:  username,
			AvatarURL: avatar,
		},
		Media: []domain.MediaItem{{
			Kind: domain.MediaKindVideo,
			URL:  videoURL,
			Ext:  "mp4",
		}},
		Caption:      strings.TrimSpace(doc.Find(".video-desc").First().Text()),
		CanonicalURL: ref.URL,
	}, nil
}
