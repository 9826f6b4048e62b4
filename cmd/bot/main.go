package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"newsbot/internal/ai"
	"newsbot/internal/bot"
	"newsbot/internal/config"
	"newsbot/internal/filter"
	"newsbot/internal/health"
	"newsbot/internal/metrics"
	"newsbot/internal/pipeline"
	"newsbot/internal/ratelimit"
	"newsbot/internal/scheduler"
	"newsbot/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	limiter := ratelimit.New(cfg.RatePerMinute, cfg.RatePerHour, log)
	limiter.OnWait(func(time.Duration) { m.RateLimitWaits.Inc() })

	b, err := bot.New(cfg.TelegramBotToken, store, cfg, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	analyzer := ai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, log)

	pipe := pipeline.New(pipeline.Config{
		TargetChat:          cfg.TargetChat,
		ReviewChat:          cfg.ReviewChat,
		DailyCap:            cfg.MaxPostsPerDay,
		SimilarityThreshold: cfg.SimilarityThreshold,
		DebounceInterval:    cfg.AlbumDebounce,
	}, store, b, filter.New(cfg.Keywords, cfg.SpamKeywords), analyzer, limiter, m, log)
	defer pipe.Close()
	b.SetPipeline(pipe)

	srv := health.New(cfg.MetricsPort, store, limiter, registry, log)
	b.SetIntakeObserver(srv)

	sched := scheduler.New(pipe, store, cfg.RSSFeeds, cfg.RetentionDays, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting bot",
		"sources", len(cfg.SourceChats),
		"rss_feeds", len(cfg.RSSFeeds),
		"target", cfg.TargetChat,
		"daily_cap", cfg.MaxPostsPerDay,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	g.Go(func() error { sched.Run(ctx); return nil })
	g.Go(func() error { b.Run(ctx); return nil })

	srv.MarkReady()

	if err := g.Wait(); err != nil {
		log.Error("bot stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("bot stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
