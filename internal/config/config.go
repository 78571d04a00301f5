package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"eventcal/internal/datekey"
	"eventcal/internal/event"
)

// FeedConfig describes the event feed.
type FeedConfig struct {
	// URL is the CSV or ICS endpoint.
	URL string `yaml:"url" json:"url"`
	// Columns maps event fields to feed column names. Empty entries keep
	// the defaults (date,name,about,start,end,location,sponsor).
	Columns event.Columns `yaml:"columns" json:"columns"`
	// PastDays / FutureDays bound ICS recurrence expansion.
	PastDays   int `yaml:"past_days" json:"past_days"`
	FutureDays int `yaml:"future_days" json:"future_days"`
}

// MapConfig enables per-event maps.
type MapConfig struct {
	StyleURL   string `yaml:"style_url" json:"style_url"`
	GeocodeURL string `yaml:"geocode_url" json:"geocode_url"`
	Zoom       int    `yaml:"zoom" json:"zoom"`
}

// PreviewConfig controls the headless browser snapshot behind /preview.png.
type PreviewConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Width   int    `yaml:"width" json:"width"`
	Height  int    `yaml:"height" json:"height"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone the feed's dates and times are written in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// ViewerTimezone is used for requests that do not send a zone. Empty
	// means the server's local zone.
	ViewerTimezone string `yaml:"viewer_timezone" json:"viewer_timezone"`

	// Locale decides the first day of the week, e.g. "en-US" or "DE".
	Locale string `yaml:"locale" json:"locale"`

	// ContainerID names the calendar in address fragments.
	ContainerID string `yaml:"container_id" json:"container_id"`

	Feed FeedConfig `yaml:"feed" json:"feed"`

	// Min and Max pin the navigable range (YYYY-MM-DD); empty derives it
	// from the loaded events.
	Min string `yaml:"min,omitempty" json:"min,omitempty"`
	Max string `yaml:"max,omitempty" json:"max,omitempty"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used for periodic feed refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// CacheDir holds the HTTP cache of the feed. Empty disables caching.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// LogLevel is one of debug, info, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Maps, if non-nil, enables map panels for events with a location.
	Maps *MapConfig `yaml:"maps,omitempty" json:"maps,omitempty"`

	Preview PreviewConfig `yaml:"preview" json:"preview"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen     = "127.0.0.1:8080"
	defaultTimezone   = "America/New_York"
	defaultRefresh    = "*/15 * * * *"
	defaultWindowDays = 365
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.ContainerID == "" {
		c.ContainerID = "calendar"
	}
	c.Feed.Columns = c.Feed.Columns.WithDefaults()
	if c.Feed.PastDays <= 0 {
		c.Feed.PastDays = defaultWindowDays
	}
	if c.Feed.FutureDays <= 0 {
		c.Feed.FutureDays = defaultWindowDays
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = "info"
	}
	if c.Maps != nil && c.Maps.Zoom <= 0 {
		c.Maps.Zoom = 15
	}
	if c.Preview.Width <= 0 {
		c.Preview.Width = 1024
	}
	if c.Preview.Height <= 0 {
		c.Preview.Height = 768
	}
	if c.Preview.Path == "" {
		c.Preview.Path = filepath.Join(os.TempDir(), "eventcal-preview.png")
	}
}

// Validate reports settings that would break the calendar at runtime.
func (c *Config) Validate() error {
	var errs []error
	if c.Feed.URL == "" {
		errs = append(errs, errors.New("feed.url is required"))
	}
	for name, v := range map[string]string{"min": c.Min, "max": c.Max} {
		if v == "" {
			continue
		}
		if _, err := datekey.Parse(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.Min != "" && c.Max != "" && c.Min > c.Max {
		errs = append(errs, errors.New("min is after max"))
	}
	return errors.Join(errs...)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".eventcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}

// LoadEnvFile reads KEY=VALUE pairs from a .env file into the process
// environment. A missing file is not an error; variables already set win.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from EVENTCAL_* variables. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("EVENTCAL_LISTEN", &c.Listen)
	str("EVENTCAL_TIMEZONE", &c.Timezone)
	str("EVENTCAL_VIEWER_TIMEZONE", &c.ViewerTimezone)
	str("EVENTCAL_LOCALE", &c.Locale)
	str("EVENTCAL_CONTAINER_ID", &c.ContainerID)
	str("EVENTCAL_FEED_URL", &c.Feed.URL)
	str("EVENTCAL_MIN", &c.Min)
	str("EVENTCAL_MAX", &c.Max)
	str("EVENTCAL_REFRESH", &c.RefreshCron)
	str("EVENTCAL_CACHE_DIR", &c.CacheDir)
	str("EVENTCAL_LOG_LEVEL", &c.LogLevel)

	if v, ok := lookup("EVENTCAL_COLUMNS"); ok && v != "" {
		c.Feed.Columns = event.ParseColumns(v)
	}
	if v, ok := lookup("EVENTCAL_PREVIEW"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Preview.Enabled = b
		}
	}

	user, uok := lookup("EVENTCAL_BASIC_AUTH_USER")
	pass, pok := lookup("EVENTCAL_BASIC_AUTH_PASSWORD")
	if uok && pok && user != "" && pass != "" {
		c.BasicAuth = &BasicAuthConfig{Username: user, Password: pass}
	}
	c.Normalize()
}
