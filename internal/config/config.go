package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Download  DownloadConfig  `yaml:"download"`
	Instagram InstagramConfig `yaml:"instagram"`
	TikTok    TikTokConfig    `yaml:"tiktok"`
	Reddit    RedditConfig    `yaml:"reddit"`
	Twitter   TwitterConfig   `yaml:"twitter"`
	Shortener ShortenerConfig `yaml:"shortener"`
	Embed     EmbedConfig     `yaml:"embed"`
	Events    EventsConfig    `yaml:"events"`

	// Warnings lists adjustments Load made that the caller should log.
	Warnings []string `yaml:"-" ignored:"true"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT" default:"9848"`
	APIKey       string        `yaml:"api_key" envconfig:"API_KEY"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT" default:"5m"`
}

// StorageConfig holds filesystem storage configuration.
type StorageConfig struct {
	// RemuxPath is the scratch directory for remuxed videos, keyed by post ID.
	RemuxPath string `yaml:"remux_path" envconfig:"STORAGE_REMUX_PATH" default:"/data/remux"`
}

// DownloadConfig holds media download configuration.
type DownloadConfig struct {
	Timeout time.Duration `yaml:"timeout" envconfig:"DOWNLOAD_TIMEOUT" default:"5m"`
	// ChunkSize is the streaming read size used when no length header is present.
	ChunkSize int `yaml:"chunk_size" envconfig:"DOWNLOAD_CHUNK_SIZE" default:"65536"`
	// DefaultMaxBytes applies when the caller does not report an attachment budget.
	DefaultMaxBytes int64    `yaml:"default_max_bytes" envconfig:"DOWNLOAD_DEFAULT_MAX_BYTES" default:"26214400"` // 25MB
	UserAgents      []string `yaml:"user_agents" envconfig:"DOWNLOAD_USER_AGENTS"`
	FFmpegPath      string   `yaml:"ffmpeg_path" envconfig:"FFMPEG_PATH"`
}

// InstagramConfig holds Instagram API configuration.
type InstagramConfig struct {
	Enabled   bool   `yaml:"enabled" envconfig:"INSTAGRAM_ENABLED" default:"true"`
	BaseURL   string `yaml:"base_url" envconfig:"INSTAGRAM_BASE_URL" default:"https://i.instagram.com/api/v1"`
	SessionID string `yaml:"session_id" envconfig:"INSTAGRAM_SESSION_ID"`
	AppID     string `yaml:"app_id" envconfig:"INSTAGRAM_APP_ID" default:"936619743392459"`
	UserAgent string `yaml:"user_agent" envconfig:"INSTAGRAM_USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"`
	// BareShortcodes treats standalone 10+ character tokens as shortcodes.
	BareShortcodes bool `yaml:"bare_shortcodes" envconfig:"INSTAGRAM_BARE_SHORTCODES" default:"true"`
}

// TikTokConfig holds TikTok scraper configuration.
type TikTokConfig struct {
	Enabled    bool   `yaml:"enabled" envconfig:"TIKTOK_ENABLED" default:"true"`
	ScraperURL string `yaml:"scraper_url" envconfig:"TIKTOK_SCRAPER_URL" default:"https://musicaldown.com"`
}

// RedditConfig holds Reddit OAuth configuration.
type RedditConfig struct {
	Enabled      bool   `yaml:"enabled" envconfig:"REDDIT_ENABLED" default:"true"`
	ClientID     string `yaml:"client_id" envconfig:"REDDIT_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" envconfig:"REDDIT_CLIENT_SECRET"`
	UserAgent    string `yaml:"user_agent" envconfig:"REDDIT_USER_AGENT" default:"linkgrab/1.0"`
	TokenURL     string `yaml:"token_url" envconfig:"REDDIT_TOKEN_URL" default:"https://www.reddit.com/api/v1/access_token"`
	APIBaseURL   string `yaml:"api_base_url" envconfig:"REDDIT_API_BASE_URL" default:"https://oauth.reddit.com"`
}

// HasCredentials reports whether both OAuth client credentials are set.
func (c RedditConfig) HasCredentials() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// TwitterConfig holds Twitter/X aggregator configuration.
type TwitterConfig struct {
	Enabled     bool          `yaml:"enabled" envconfig:"TWITTER_ENABLED" default:"true"`
	APIBaseURL  string        `yaml:"api_base_url" envconfig:"TWITTER_API_BASE_URL" default:"https://api.fxtwitter.com"`
	MaxAttempts int           `yaml:"max_attempts" envconfig:"TWITTER_MAX_ATTEMPTS" default:"3"`
	RetryDelay  time.Duration `yaml:"retry_delay" envconfig:"TWITTER_RETRY_DELAY" default:"500ms"`
	// BareIDs treats standalone integers as tweet IDs.
	BareIDs bool `yaml:"bare_ids" envconfig:"TWITTER_BARE_IDS" default:"true"`
}

// ShortenerConfig holds URL shortener configuration. An empty APIURL disables shortening.
type ShortenerConfig struct {
	APIURL  string        `yaml:"api_url" envconfig:"SHORTENER_API_URL"`
	APIKey  string        `yaml:"api_key" envconfig:"SHORTENER_API_KEY"`
	Tags    []string      `yaml:"tags" envconfig:"SHORTENER_TAGS" default:"linkgrab"`
	Timeout time.Duration `yaml:"timeout" envconfig:"SHORTENER_TIMEOUT" default:"10s"`
}

// EmbedConfig holds response assembly configuration.
type EmbedConfig struct {
	ShowCaption    bool          `yaml:"show_caption" envconfig:"EMBED_SHOW_CAPTION" default:"true"`
	MaxAttachments int           `yaml:"max_attachments" envconfig:"EMBED_MAX_ATTACHMENTS" default:"10"`
	MaxTextLength  int           `yaml:"max_text_length" envconfig:"EMBED_MAX_TEXT_LENGTH" default:"1997"`
	ControlTimeout time.Duration `yaml:"control_timeout" envconfig:"EMBED_CONTROL_TIMEOUT" default:"5m"`
}

// EventsConfig holds activity log configuration.
type EventsConfig struct {
	BufferSize int    `yaml:"buffer_size" envconfig:"EVENTS_BUFFER_SIZE" default:"500"`
	SQLitePath string `yaml:"sqlite_path" envconfig:"EVENTS_SQLITE_PATH"`
}

// Load reads configuration from an optional .env file, an optional YAML file
// and environment variables. Precedence, lowest first: struct defaults, the
// YAML file, variables present in the environment.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	// env holds defaults plus whatever the environment sets.
	env := &Config{}
	if err := envconfig.Process("", env); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	cfg := &Config{}
	*cfg = *env
	redditExplicit := isEnvSet("REDDIT_ENABLED")

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
		var explicit struct {
			Reddit struct {
				Enabled *bool `yaml:"enabled"`
			} `yaml:"reddit"`
		}
		if err := yaml.Unmarshal(data, &explicit); err == nil && explicit.Reddit.Enabled != nil {
			redditExplicit = true
		}
		overlayEnv(reflect.ValueOf(cfg).Elem(), reflect.ValueOf(env).Elem())
	}

	if len(cfg.Download.UserAgents) == 0 {
		cfg.Download.UserAgents = DefaultUserAgents()
	}

	if cfg.Reddit.Enabled && !cfg.Reddit.HasCredentials() && !redditExplicit {
		cfg.Reddit.Enabled = false
		cfg.Warnings = append(cfg.Warnings, "reddit disabled: REDDIT_CLIENT_ID and REDDIT_CLIENT_SECRET are not set")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// overlayEnv copies into dst every field of src whose environment variable is
// present, descending into nested sections.
func overlayEnv(dst, src reflect.Value) {
	t := dst.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		key := field.Tag.Get("envconfig")
		if key == "" {
			if field.Type.Kind() == reflect.Struct {
				overlayEnv(dst.Field(i), src.Field(i))
			}
			continue
		}
		if isEnvSet(key) {
			dst.Field(i).Set(src.Field(i))
		}
	}
}

func isEnvSet(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Storage.RemuxPath == "" {
		return fmt.Errorf("STORAGE_REMUX_PATH is required")
	}
	if c.Reddit.Enabled && !c.Reddit.HasCredentials() {
		return fmt.Errorf("REDDIT_CLIENT_ID and REDDIT_CLIENT_SECRET are required when reddit is enabled")
	}
	if c.Twitter.MaxAttempts < 1 {
		return fmt.Errorf("TWITTER_MAX_ATTEMPTS must be at least 1")
	}
	if c.Embed.MaxAttachments < 1 {
		return fmt.Errorf("EMBED_MAX_ATTACHMENTS must be at least 1")
	}
	if c.Embed.MaxTextLength < 1 {
		return fmt.Errorf("EMBED_MAX_TEXT_LENGTH must be at least 1")
	}
	if c.Download.ChunkSize <= 0 {
		return fmt.Errorf("DOWNLOAD_CHUNK_SIZE must be positive")
	}
	return nil
}

// ValidateServer checks the settings only the HTTP service needs.
func (c *Config) ValidateServer() error {
	if c.Server.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DefaultUserAgents returns the browser user agents rotated by the media fetcher.
func DefaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	}
}
