package pubstatic

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// SiteConfig holds all configuration for a pubstatic site.
type SiteConfig struct {
	Name         string `yaml:"name"`          // Site name (default "Blog")
	URL          string `yaml:"url"`           // Canonical base URL (default "http://localhost:3000")
	Description  string `yaml:"description"`   // Index meta description
	Author       string `yaml:"author"`        // Organization credited as article author
	Publisher    string `yaml:"publisher"`     // Publisher organization name (default Name)
	PublisherURL string `yaml:"publisher_url"` // Publisher organization URL (default URL)

	Addr     string `yaml:"addr"`      // Listen address (default ":3000")
	LogLevel string `yaml:"log_level"` // debug, info, warn, error (default "info")

	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	NATS     NATSConfig     `yaml:"nats"`

	Revalidate       time.Duration `yaml:"revalidate"`        // Staleness budget per page (default 1h)
	PrebuildInterval time.Duration `yaml:"prebuild_interval"` // Path re-enumeration period, negative disables (default 1h)
	StoreTimeout     time.Duration `yaml:"store_timeout"`     // Per-read store timeout (default 10s)
	BodyFormat       string        `yaml:"body_format"`       // "html" or "markdown" (default "html")

	MetricsEnabled bool `yaml:"metrics_enabled"`

	AdminPassword string `yaml:"admin_password"` // Enables the admin page when set
	SessionSecret string `yaml:"session_secret"` // Required with AdminPassword
	CookieSecure  bool   `yaml:"cookie_secure"`  // Set true for HTTPS
}

// DatabaseConfig selects the content store.
type DatabaseConfig struct {
	Driver       string `yaml:"driver"`        // "postgres" or "sqlite" (default "sqlite")
	DSN          string `yaml:"dsn"`           // Connection string or SQLite path (default "data/blog.db")
	Table        string `yaml:"table"`         // Posts table (default "company_blog_posts")
	CreateSchema bool   `yaml:"create_schema"` // Create the table on PostgreSQL
}

// RedisConfig enables the shared Redis page cache when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"` // Key prefix (default "pubstatic:")
}

// NATSConfig enables on-demand revalidation messages when URL is set.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"` // default "blog.posts.changed"
}

const (
	bodyFormatHTML     = "html"
	bodyFormatMarkdown = "markdown"
)

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Blog"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Publisher == "" {
		c.Publisher = c.Name
	}
	if c.PublisherURL == "" {
		c.PublisherURL = c.URL
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = driverSQLite
	}
	if c.Database.DSN == "" && c.Database.Driver == driverSQLite {
		c.Database.DSN = "data/blog.db"
	}
	if c.Database.Table == "" {
		c.Database.Table = "company_blog_posts"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "pubstatic:"
	}
	if c.NATS.Subject == "" {
		c.NATS.Subject = "blog.posts.changed"
	}
	if c.Revalidate == 0 {
		c.Revalidate = time.Hour
	}
	if c.PrebuildInterval == 0 {
		c.PrebuildInterval = time.Hour
	}
	if c.StoreTimeout == 0 {
		c.StoreTimeout = 10 * time.Second
	}
	if c.BodyFormat == "" {
		c.BodyFormat = bodyFormatHTML
	}
}

// Validate reports configuration that cannot be served.
func (c *SiteConfig) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("pubstatic: url %q must be absolute", c.URL)
	}
	if c.Database.Driver != driverSQLite && c.Database.Driver != driverPostgres {
		return fmt.Errorf("pubstatic: unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("pubstatic: database dsn is required")
	}
	if c.BodyFormat != bodyFormatHTML && c.BodyFormat != bodyFormatMarkdown {
		return fmt.Errorf("pubstatic: body_format must be %q or %q", bodyFormatHTML, bodyFormatMarkdown)
	}
	if c.Revalidate < 0 || c.StoreTimeout < 0 {
		return errors.New("pubstatic: revalidate and store_timeout must not be negative")
	}
	if c.AdminPassword != "" && c.SessionSecret == "" {
		return errors.New("pubstatic: session_secret is required when admin_password is set")
	}
	return nil
}

// PrebuildEnabled reports whether paths are re-enumerated periodically.
func (c SiteConfig) PrebuildEnabled() bool {
	return c.PrebuildInterval > 0
}

// LoadConfig reads the YAML file at path (skipped when path is empty), applies
// environment overrides, fills defaults and validates the result.
func LoadConfig(path string) (SiteConfig, error) {
	var cfg SiteConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return SiteConfig{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return SiteConfig{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return SiteConfig{}, err
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return SiteConfig{}, err
	}
	return cfg, nil
}

// LoadEnvFile loads KEY=value pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (c *SiteConfig) applyEnv() error {
	setString(&c.Name, "SITE_NAME")
	setString(&c.URL, "SITE_URL")
	setString(&c.Description, "SITE_DESCRIPTION")
	setString(&c.Author, "SITE_AUTHOR")
	setString(&c.Publisher, "SITE_PUBLISHER")
	setString(&c.PublisherURL, "SITE_PUBLISHER_URL")
	setString(&c.Addr, "ADDR")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.Database.Driver, "DATABASE_DRIVER")
	setString(&c.Database.DSN, "DATABASE_URL")
	setString(&c.Database.Table, "DATABASE_TABLE")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.NATS.URL, "NATS_URL")
	setString(&c.NATS.Subject, "NATS_SUBJECT")
	setString(&c.BodyFormat, "BODY_FORMAT")
	setString(&c.AdminPassword, "ADMIN_PASSWORD")
	setString(&c.SessionSecret, "SESSION_SECRET")

	for key, dst := range map[string]*time.Duration{
		"REVALIDATE":        &c.Revalidate,
		"PREBUILD_INTERVAL": &c.PrebuildInterval,
		"STORE_TIMEOUT":     &c.StoreTimeout,
	} {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("pubstatic: %s: %w", key, err)
			}
			*dst = d
		}
	}
	for key, dst := range map[string]*bool{
		"METRICS_ENABLED": &c.MetricsEnabled,
		"COOKIE_SECURE":   &c.CookieSecure,
	} {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("pubstatic: %s: %w", key, err)
			}
			*dst = b
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithStore injects a content store instead of opening Config.Database.
func WithStore(s ContentStore) Option {
	return func(a *App) {
		a.Store = s
	}
}

// WithCacheBackend replaces the page backend chosen from the config.
func WithCacheBackend(b PageBackend) Option {
	return func(a *App) {
		a.backend = b
	}
}

// WithLogger sets the application logger (default: NewLogger(Config.LogLevel, os.Stdout)).
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		a.Logger = l
	}
}

// WithViews overrides individual page templates; nil fields keep the defaults.
func WithViews(v ViewFuncs) Option {
	return func(a *App) {
		a.Views = a.Views.merge(v)
	}
}

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App after the built-in routes are set up.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for user-owned static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}
