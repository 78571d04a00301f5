package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != defaultListen || cfg.Timezone != "America/New_York" || cfg.Feed.Columns.Sponsor != "sponsor" {
		t.Fatalf("defaults = %+v", cfg)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("perm=%o", perm)
	}
}

func TestLoadRoundTripAndNormalize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `listen: ":9000"
timezone: Europe/Berlin
locale: de-DE
feed:
  url: https://example.com/events.csv
  columns:
    date: Datum
    name: Titel
log_level: DEBUG
maps:
  style_url: https://tiles.example/style.json
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":9000" || cfg.Locale != "de-DE" || cfg.LogLevel != "debug" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Feed.Columns.Date != "Datum" || cfg.Feed.Columns.Name != "Titel" || cfg.Feed.Columns.Start != "start" {
		t.Fatalf("columns = %+v", cfg.Feed.Columns)
	}
	if cfg.Maps == nil || cfg.Maps.Zoom != 15 {
		t.Fatalf("maps = %+v", cfg.Maps)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	cfg.Max = "2030-01-01"
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	again, err := Load(path)
	if err != nil || again.Max != "2030-01-01" {
		t.Fatalf("reload = %+v, %v", again, err)
	}
}

func TestValidate(t *testing.T) {
	tcs := []struct {
		name string
		mut  func(*Config)
		ok   bool
	}{
		{"no url", func(c *Config) {}, false},
		{"ok", func(c *Config) { c.Feed.URL = "https://x/e.csv" }, true},
		{"bad min", func(c *Config) { c.Feed.URL = "u"; c.Min = "2024-13-01" }, false},
		{"inverted", func(c *Config) { c.Feed.URL = "u"; c.Min = "2024-02-01"; c.Max = "2024-01-01" }, false},
	}
	for _, tc := range tcs {
		c := DefaultConfig()
		tc.mut(c)
		if err := c.Validate(); (err == nil) != tc.ok {
			t.Fatalf("%s: err=%v", tc.name, err)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"EVENTCAL_FEED_URL":            "https://example.com/cal.ics",
		"EVENTCAL_COLUMNS":             "when,what",
		"EVENTCAL_LOG_LEVEL":           "error",
		"EVENTCAL_BASIC_AUTH_USER":     "admin",
		"EVENTCAL_BASIC_AUTH_PASSWORD": "secret",
		"EVENTCAL_PREVIEW":             "true",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	c := DefaultConfig()
	c.ApplyEnv(lookup)
	if c.Feed.URL != "https://example.com/cal.ics" || c.Feed.Columns.Date != "when" || c.Feed.Columns.Name != "what" {
		t.Fatalf("feed = %+v", c.Feed)
	}
	if c.LogLevel != "error" || !c.Preview.Enabled {
		t.Fatalf("cfg = %+v", c)
	}
	if c.BasicAuth == nil || c.BasicAuth.Username != "admin" {
		t.Fatalf("basic auth = %+v", c.BasicAuth)
	}
}

func TestLoadEnvFile(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing file: %v", err)
	}
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("EVENTCAL_TEST_ONLY=hello\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("EVENTCAL_TEST_ONLY") })
	if err := LoadEnvFile(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("EVENTCAL_TEST_ONLY"); got != "hello" {
		t.Fatalf("env=%q", got)
	}
}
