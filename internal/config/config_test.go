package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Storage:  StorageConfig{RemuxPath: "/data/remux"},
		Download: DownloadConfig{ChunkSize: 65536},
		Reddit: RedditConfig{
			Enabled:      true,
			ClientID:     "cid",
			ClientSecret: "secret",
		},
		Twitter: TwitterConfig{MaxAttempts: 3},
		Embed: EmbedConfig{
			MaxAttachments: 10,
			MaxTextLength:  1997,
		},
	}
}

func TestConfig_Validate_Success(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("Validate() should pass, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing remux path", func(c *Config) { c.Storage.RemuxPath = "" }},
		{"reddit without client id", func(c *Config) { c.Reddit.ClientID = "" }},
		{"reddit without secret", func(c *Config) { c.Reddit.ClientSecret = "" }},
		{"zero twitter attempts", func(c *Config) { c.Twitter.MaxAttempts = 0 }},
		{"zero attachment cap", func(c *Config) { c.Embed.MaxAttachments = 0 }},
		{"zero text cap", func(c *Config) { c.Embed.MaxTextLength = 0 }},
		{"zero chunk size", func(c *Config) { c.Download.ChunkSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}
}

func TestConfig_Validate_RedditDisabled(t *testing.T) {
	cfg := validConfig()
	cfg.Reddit = RedditConfig{Enabled: false}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() should pass with reddit disabled, got %v", err)
	}
}

func TestConfig_ValidateServer(t *testing.T) {
	cfg := validConfig()
	if err := cfg.ValidateServer(); err == nil {
		t.Error("ValidateServer() should fail without API_KEY")
	}
	cfg.Server.APIKey = "key"
	if err := cfg.ValidateServer(); err != nil {
		t.Errorf("ValidateServer() should pass, got %v", err)
	}
}

func TestServerConfig_Address(t *testing.T) {
	cfg := &ServerConfig{Host: "127.0.0.1", Port: 9848}
	if got := cfg.Address(); got != "127.0.0.1:9848" {
		t.Errorf("Address() = %q, want %q", got, "127.0.0.1:9848")
	}
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("REDDIT_CLIENT_ID", "cid")
	t.Setenv("REDDIT_CLIENT_SECRET", "secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Twitter.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.Twitter.MaxAttempts)
	}
	if cfg.Embed.MaxAttachments != 10 {
		t.Errorf("MaxAttachments = %d, want 10", cfg.Embed.MaxAttachments)
	}
	if cfg.Embed.MaxTextLength != 1997 {
		t.Errorf("MaxTextLength = %d, want 1997", cfg.Embed.MaxTextLength)
	}
	if !cfg.Instagram.BareShortcodes {
		t.Error("BareShortcodes should default to true")
	}
	if len(cfg.Download.UserAgents) == 0 {
		t.Error("UserAgents should fall back to defaults")
	}
	if len(cfg.Shortener.Tags) != 1 || cfg.Shortener.Tags[0] != "linkgrab" {
		t.Errorf("Tags = %v, want [linkgrab]", cfg.Shortener.Tags)
	}
}

func TestLoad_FromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	configPath := filepath.Join(dir, "config.yaml")

	yamlContent := `
reddit:
  client_id: "yaml-cid"
  client_secret: "yaml-secret"
instagram:
  session_id: "yaml-session"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Reddit.ClientID != "yaml-cid" {
		t.Errorf("ClientID = %q, want %q", cfg.Reddit.ClientID, "yaml-cid")
	}
	if cfg.Instagram.SessionID != "yaml-session" {
		t.Errorf("SessionID = %q, want %q", cfg.Instagram.SessionID, "yaml-session")
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	configPath := filepath.Join(dir, "config.yaml")

	yamlContent := `
reddit:
  client_id: "yaml-cid"
  client_secret: "yaml-secret"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv("REDDIT_CLIENT_ID", "env-cid")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Reddit.ClientID != "env-cid" {
		t.Errorf("ClientID should be from env, got %q", cfg.Reddit.ClientID)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	env := "REDDIT_ENABLED=false\nINSTAGRAM_SESSION_ID=dotenv-session\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0644); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	t.Cleanup(func() {
		os.Unsetenv("REDDIT_ENABLED")
		os.Unsetenv("INSTAGRAM_SESSION_ID")
	})

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Instagram.SessionID != "dotenv-session" {
		t.Errorf("SessionID = %q, want %q", cfg.Instagram.SessionID, "dotenv-session")
	}
	if cfg.Reddit.Enabled {
		t.Error("Reddit should be disabled by .env")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("reddit: [unclosed"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Load should fail for invalid YAML")
	}
}

func TestLoad_NonexistentFile(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Load should fail for nonexistent file")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("REDDIT_ENABLED", "true")
	t.Setenv("REDDIT_CLIENT_ID", "")
	t.Setenv("REDDIT_CLIENT_SECRET", "")

	if _, err := Load(""); err == nil {
		t.Error("Load should fail when reddit credentials are missing")
	}
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	configPath := filepath.Join(dir, "config.yaml")

	yamlContent := `
reddit:
  enabled: false
twitter:
  max_attempts: 5
embed:
  show_caption: false
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Reddit.Enabled {
		t.Error("Reddit should stay disabled from YAML")
	}
	if cfg.Twitter.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.Twitter.MaxAttempts)
	}
	if cfg.Embed.ShowCaption {
		t.Error("ShowCaption should be false from YAML")
	}
	if cfg.Embed.MaxAttachments != 10 {
		t.Errorf("MaxAttachments = %d, want default 10", cfg.Embed.MaxAttachments)
	}
	if len(cfg.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", cfg.Warnings)
	}
}

func TestLoad_EnvOverridesDefaultedYAML(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("twitter:\n  max_attempts: 5\nreddit:\n  enabled: false\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv("TWITTER_MAX_ATTEMPTS", "7")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Twitter.MaxAttempts != 7 {
		t.Errorf("MaxAttempts = %d, want 7 from env", cfg.Twitter.MaxAttempts)
	}
}

func TestLoad_RedditWithoutCredentialsDisabled(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("REDDIT_CLIENT_ID", "")
	t.Setenv("REDDIT_CLIENT_SECRET", "")
	t.Setenv("REDDIT_ENABLED", "")
	os.Unsetenv("REDDIT_ENABLED")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Reddit.Enabled {
		t.Error("Reddit should be disabled without credentials")
	}
	if len(cfg.Warnings) != 1 {
		t.Errorf("Warnings = %v, want one reddit warning", cfg.Warnings)
	}
}
