package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JakeFAU/blog-archive-scraper/internal/blog"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Scraper.StartURL != "https://blog.python.org/" {
		t.Fatalf("unexpected start url %q", cfg.Scraper.StartURL)
	}
	if cfg.Scraper.UserAgent != "blogscraper/1.0" {
		t.Fatalf("unexpected user agent %q", cfg.Scraper.UserAgent)
	}
	if cfg.Rules != blog.DefaultRules() {
		t.Fatalf("expected default rules, got %+v", cfg.Rules)
	}
	want := DBConfig{Name: "postgres", User: "postgres", Password: "postgres", Host: "db", Port: 5432, Table: "scrapped_contents"}
	if cfg.DB != want {
		t.Fatalf("expected db defaults %+v, got %+v", want, cfg.DB)
	}
	if cfg.Archive.Backend != ArchiveNone || cfg.Archive.Prefix != "pages" {
		t.Fatalf("unexpected archive defaults %+v", cfg.Archive)
	}
	if cfg.Metrics.Job != "blogscraper" || cfg.Logging.Level != "info" || cfg.Logging.Development {
		t.Fatalf("unexpected metrics/logging defaults %+v %+v", cfg.Metrics, cfg.Logging)
	}
	if cfg.HTTPTimeout() != 0 || cfg.HeadlessTimeout() != 45*time.Second {
		t.Fatalf("unexpected timeouts %v %v", cfg.HTTPTimeout(), cfg.HeadlessTimeout())
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
scraper:
  start_url: https://example.com/archive
  user_agent: test-agent
  timeout_seconds: 20
  max_pages: 3
  headless: true
rules:
  container: article
  title: h1
  date: time
  content: div.body
  author: ""
  next_page: a.older
db:
  table: posts
  sslmode: disable
archive:
  backend: local
  local_dir: /tmp/pages
pubsub:
  project_id: proj
  topic: runs
logging:
  development: true
  level: debug
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Scraper.StartURL != "https://example.com/archive" || cfg.Scraper.MaxPages != 3 || !cfg.Scraper.Headless {
		t.Fatalf("expected scraper overrides to apply: %+v", cfg.Scraper)
	}
	if cfg.HTTPTimeout() != 20*time.Second {
		t.Fatalf("expected 20s timeout, got %v", cfg.HTTPTimeout())
	}
	if cfg.Rules.Container != "article" || cfg.Rules.Author != "" || cfg.Rules.NextPage != "a.older" {
		t.Fatalf("expected rule overrides to apply: %+v", cfg.Rules)
	}
	if cfg.DB.Table != "posts" || cfg.DB.SSLMode != "disable" || cfg.DB.Host != "db" {
		t.Fatalf("expected db overrides on top of defaults: %+v", cfg.DB)
	}
	if cfg.Archive.Backend != ArchiveLocal || cfg.Archive.LocalDir != "/tmp/pages" {
		t.Fatalf("expected archive overrides: %+v", cfg.Archive)
	}
	if cfg.PubSub.Topic != "runs" || !cfg.Logging.Development || cfg.Logging.Level != "debug" {
		t.Fatalf("expected pubsub/logging overrides: %+v %+v", cfg.PubSub, cfg.Logging)
	}
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("DB_NAME", "blog")
	t.Setenv("DB_USER", "scraper")
	t.Setenv("DB_PASSWORD", "s3cret")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("BLOGSCRAPER_SCRAPER_START_URL", "http://localhost:8080/")
	t.Setenv("BLOGSCRAPER_SCRAPER_MAX_PAGES", "7")
	t.Setenv("BLOGSCRAPER_ARCHIVE_BACKEND", "gcs")
	t.Setenv("BLOGSCRAPER_ARCHIVE_GCS_BUCKET", "raw-pages")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := DBConfig{Name: "blog", User: "scraper", Password: "s3cret", Host: "localhost", Port: 6543, Table: "scrapped_contents"}
	if cfg.DB != want {
		t.Fatalf("expected db from env %+v, got %+v", want, cfg.DB)
	}
	if cfg.Scraper.StartURL != "http://localhost:8080/" || cfg.Scraper.MaxPages != 7 {
		t.Fatalf("expected scraper env overrides: %+v", cfg.Scraper)
	}
	if cfg.Archive.Backend != ArchiveGCS || cfg.Archive.GCSBucket != "raw-pages" {
		t.Fatalf("expected archive env overrides: %+v", cfg.Archive)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for a missing explicit config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Scraper: ScraperConfig{StartURL: "https://blog.python.org/"},
		Rules:   blog.DefaultRules(),
		DB:      DBConfig{Port: 5432, Table: "scrapped_contents"},
		Archive: ArchiveConfig{Backend: ArchiveNone},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"relative start url", func(c *Config) { c.Scraper.StartURL = "/archive" }, "scraper.start_url"},
		{"ftp start url", func(c *Config) { c.Scraper.StartURL = "ftp://example.com/" }, "scraper.start_url"},
		{"negative timeout", func(c *Config) { c.Scraper.TimeoutSeconds = -1 }, "scraper.timeout_seconds"},
		{"negative max pages", func(c *Config) { c.Scraper.MaxPages = -1 }, "scraper.max_pages"},
		{"negative headless timeout", func(c *Config) { c.Scraper.HeadlessTimeoutSeconds = -5 }, "scraper.headless_timeout_seconds"},
		{"bad selector", func(c *Config) { c.Rules.Title = "h3[" }, "rules"},
		{"missing container", func(c *Config) { c.Rules.Container = "" }, "rules"},
		{"zero port", func(c *Config) { c.DB.Port = 0 }, "db.port"},
		{"bad table", func(c *Config) { c.DB.Table = "posts; DROP TABLE x" }, "db.table"},
		{"unknown backend", func(c *Config) { c.Archive.Backend = "s3" }, "archive.backend"},
		{"local without dir", func(c *Config) { c.Archive.Backend = ArchiveLocal }, "archive.local_dir"},
		{"gcs without bucket", func(c *Config) { c.Archive.Backend = ArchiveGCS }, "archive.gcs_bucket"},
		{"topic without project", func(c *Config) { c.PubSub.Topic = "runs" }, "pubsub.project_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
