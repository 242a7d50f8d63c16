// Package config loads and validates scraper configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/blog-archive-scraper/internal/blog"
	"github.com/JakeFAU/blog-archive-scraper/internal/storage/postgres"
)

// EnvConfigPath names the variable that points at an explicit config file.
const EnvConfigPath = "BLOGSCRAPER_CONFIG"

// Archive backends.
const (
	ArchiveNone  = "none"
	ArchiveLocal = "local"
	ArchiveGCS   = "gcs"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Scraper ScraperConfig `mapstructure:"scraper"`
	Rules   blog.Rules    `mapstructure:"rules"`
	DB      DBConfig      `mapstructure:"db"`
	Archive ArchiveConfig `mapstructure:"archive"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ScraperConfig governs fetching and pagination.
type ScraperConfig struct {
	StartURL               string `mapstructure:"start_url"`
	UserAgent              string `mapstructure:"user_agent"`
	TimeoutSeconds         int    `mapstructure:"timeout_seconds"`
	MaxPages               int    `mapstructure:"max_pages"`
	RespectRobots          bool   `mapstructure:"respect_robots"`
	Headless               bool   `mapstructure:"headless"`
	HeadlessTimeoutSeconds int    `mapstructure:"headless_timeout_seconds"`
}

// DBConfig holds the Postgres connection parameters.
type DBConfig struct {
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Table    string `mapstructure:"table"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ArchiveConfig selects where raw pages are kept, if anywhere.
type ArchiveConfig struct {
	Backend   string `mapstructure:"backend"`
	Prefix    string `mapstructure:"prefix"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// PubSubConfig holds the run summary topic.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// MetricsConfig points at an optional Pushgateway.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from defaults, an optional file and the environment.
// An empty path searches for config.yaml in the working directory and
// /etc/blogscraper; not finding one there is fine.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BLOGSCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/blogscraper/")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	rules := blog.DefaultRules()

	v.SetDefault("scraper.start_url", "https://blog.python.org/")
	v.SetDefault("scraper.user_agent", "blogscraper/1.0")
	v.SetDefault("scraper.timeout_seconds", 0)
	v.SetDefault("scraper.max_pages", 0)
	v.SetDefault("scraper.respect_robots", false)
	v.SetDefault("scraper.headless", false)
	v.SetDefault("scraper.headless_timeout_seconds", 45)
	v.SetDefault("rules.container", rules.Container)
	v.SetDefault("rules.title", rules.Title)
	v.SetDefault("rules.date", rules.Date)
	v.SetDefault("rules.content", rules.Content)
	v.SetDefault("rules.author", rules.Author)
	v.SetDefault("rules.next_page", rules.NextPage)
	v.SetDefault("db.name", "postgres")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.host", "db")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.table", "scrapped_contents")
	v.SetDefault("db.sslmode", "")
	v.SetDefault("archive.backend", ArchiveNone)
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("archive.local_dir", "data/pages")
	v.SetDefault("archive.gcs_bucket", "")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "blogscraper")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
}

// bindLegacyEnv keeps the unprefixed DB_* variables working for the
// connection parameters.
func bindLegacyEnv(v *viper.Viper) error {
	for key, env := range map[string]string{
		"db.name":     "DB_NAME",
		"db.user":     "DB_USER",
		"db.password": "DB_PASSWORD",
		"db.host":     "DB_HOST",
		"db.port":     "DB_PORT",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind env %s: %w", env, err)
		}
	}
	return nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	u, err := url.Parse(c.Scraper.StartURL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("scraper.start_url must be an absolute http(s) url")
	}
	if c.Scraper.TimeoutSeconds < 0 {
		return fmt.Errorf("scraper.timeout_seconds must be >= 0")
	}
	if c.Scraper.MaxPages < 0 {
		return fmt.Errorf("scraper.max_pages must be >= 0")
	}
	if c.Scraper.HeadlessTimeoutSeconds < 0 {
		return fmt.Errorf("scraper.headless_timeout_seconds must be >= 0")
	}
	if err := c.Rules.Validate(); err != nil {
		return fmt.Errorf("rules: %w", err)
	}
	if c.DB.Port <= 0 {
		return fmt.Errorf("db.port must be > 0")
	}
	if !postgres.ValidTableName(c.DB.Table) {
		return fmt.Errorf("db.table %q is not a valid identifier", c.DB.Table)
	}
	switch c.Archive.Backend {
	case ArchiveNone, "":
	case ArchiveLocal:
		if c.Archive.LocalDir == "" {
			return fmt.Errorf("archive.local_dir must be set for the local backend")
		}
	case ArchiveGCS:
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("archive.backend %q is not one of none, local, gcs", c.Archive.Backend)
	}
	if c.PubSub.Topic != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic is set")
	}
	return nil
}

// HTTPTimeout returns the fetch timeout. Zero leaves the transport default.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.Scraper.TimeoutSeconds) * time.Second
}

// HeadlessTimeout returns the navigation timeout for rendered fetches.
func (c Config) HeadlessTimeout() time.Duration {
	return time.Duration(c.Scraper.HeadlessTimeoutSeconds) * time.Second
}
