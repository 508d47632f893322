package service

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/iconidentify/linkgrab/internal/assembler"
	"github.com/iconidentify/linkgrab/internal/config"
	"github.com/iconidentify/linkgrab/internal/domain"
	"github.com/iconidentify/linkgrab/internal/downloader"
	"github.com/iconidentify/linkgrab/internal/extractor"
	"github.com/iconidentify/linkgrab/internal/provider"
	"github.com/iconidentify/linkgrab/internal/repository"
	"github.com/iconidentify/linkgrab/pkg/ffmpeg"
)

// NewEmbedServiceFromConfig wires extractors, resolvers and the media fetcher
// for every enabled provider. Reddit hosted videos are only supported when
// ffmpeg can be found. events may be nil.
func NewEmbedServiceFromConfig(cfg *config.Config, events domain.EventEmitter, logger *slog.Logger) (*EmbedService, error) {
	client := &http.Client{Timeout: cfg.Download.Timeout}

	var (
		extractors []extractor.Extractor
		resolvers  = make(map[domain.Provider]provider.Resolver)
		expander   ReferenceExpander
		remuxCache repository.RemuxCache
	)

	if cfg.Instagram.Enabled {
		extractors = append(extractors, extractor.NewInstagram(cfg.Instagram.BareShortcodes))
		expander = extractor.NewShareExpander(client, cfg.Instagram.UserAgent, logger.With("component", "share"))
		resolvers[domain.ProviderInstagram] = provider.NewChain("instagram", logger,
			provider.NewInstagram(cfg.Instagram, client, logger.With("provider", domain.ProviderInstagram)),
		)
	}

	if cfg.TikTok.Enabled {
		extractors = append(extractors, extractor.NewTikTok())
		resolvers[domain.ProviderTikTok] = provider.NewTikTok(cfg.TikTok, client, logger.With("provider", domain.ProviderTikTok))
	}

	if cfg.Reddit.Enabled {
		cache, err := repository.NewFilesystemRemuxCache(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("create remux cache: %w", err)
		}
		remuxCache = cache
		var remuxer provider.Remuxer
		if r, err := ffmpeg.NewRemuxer(cfg.Download.FFmpegPath); err != nil {
			logger.Warn("ffmpeg not available, reddit hosted videos disabled", "error", err)
		} else {
			remuxer = r
		}
		redditLogger := logger.With("provider", domain.ProviderReddit)
		tokens := provider.NewRedditTokenSource(cfg.Reddit, client, redditLogger)
		extractors = append(extractors, extractor.NewReddit())
		resolvers[domain.ProviderReddit] = provider.NewReddit(cfg.Reddit, client, tokens, remuxer, cache, redditLogger)
	}

	if cfg.Twitter.Enabled {
		extractors = append(extractors, extractor.NewTwitter(cfg.Twitter.BareIDs))
		resolvers[domain.ProviderTwitter] = provider.NewTwitter(cfg.Twitter, client, logger.With("provider", domain.ProviderTwitter))
	}

	if len(extractors) == 0 {
		return nil, fmt.Errorf("no providers enabled")
	}

	fetcher := downloader.NewHTTPDownloader(cfg.Download, downloader.NewShortener(cfg.Shortener), cfg.Shortener.Tags, logger.With("component", "downloader"))

	return NewEmbedService(
		extractors,
		expander,
		resolvers,
		fetcher,
		assembler.New(cfg.Embed),
		events,
		remuxCache,
		cfg.Download.DefaultMaxBytes,
		logger,
	), nil
}
