package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"

	"eventcal/internal/config"
	"eventcal/internal/event"
	"eventcal/internal/feed"
	"eventcal/internal/geo"
	appLog "eventcal/internal/log"
	"eventcal/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	envPath    string
	listen     string
	once       bool
}

func main() {
	flags := parseFlags()

	if err := config.LoadEnvFile(flags.envPath); err != nil {
		appLog.Error("failed to load env file", err, "env_path", flags.envPath)
		os.Exit(1)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	conf.ApplyEnv(os.LookupEnv)

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	appLog.Info("eventcal starting", "version", "0.1.0")

	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	calZone, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		appLog.Error("unknown timezone", err, "timezone", conf.Timezone)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"viewer_timezone", conf.ViewerTimezone,
		"locale", conf.Locale,
		"refresh", conf.RefreshCron,
		"cache_dir", conf.CacheDir,
		"maps", conf.Maps != nil,
		"preview", conf.Preview.Enabled,
		"once", flags.once,
	)

	src := feed.NewHTTPSource(feed.NewFetcher(conf.CacheDir, 30*time.Second), calZone)
	src.Columns = conf.Feed.Columns
	src.Past = time.Duration(conf.Feed.PastDays) * 24 * time.Hour
	src.Future = time.Duration(conf.Feed.FutureDays) * 24 * time.Hour

	var maps event.MapStrategy
	if conf.Maps != nil {
		maps = geo.NewStrategy(geo.NewGeocoder(conf.Maps.GeocodeURL, 10*time.Second), conf.Maps.StyleURL, conf.Maps.Zoom)
	}

	server := web.NewServer(conf, web.Options{Maps: maps})

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Refresh(ctx, src); err != nil && flags.once {
		os.Exit(1)
	}
	if flags.once {
		appLog.Info("single refresh done; exiting")
		return
	}

	sched := cron.New(cron.WithLocation(calZone))
	if _, err := sched.AddFunc(conf.RefreshCron, func() {
		refreshCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		_ = server.Refresh(refreshCtx, src)
	}); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	if err := server.ListenAndServe(ctx); err != nil {
		appLog.Error("http server stopped", err)
		os.Exit(1)
	}
	appLog.Info("eventcal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/eventcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.envPath, "env", ".env", "Path to an optional .env file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Fetch the feed once and exit")

	flag.Parse()

	return cfg
}
