// Package scheduler runs the periodic jobs: RSS polling and ledger retention.
package scheduler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"newsbot/internal/feed"
	"newsbot/internal/model"
	"newsbot/internal/pipeline"
	"newsbot/internal/storage"
)

// Scheduler periodically polls RSS sources into the pipeline and purges
// ledger records past the retention horizon.
type Scheduler struct {
	pipe          *pipeline.Pipeline
	ledger        storage.Ledger
	fetcher       *feed.Fetcher
	feeds         []string
	retentionDays int
	log           *slog.Logger

	tick      time.Duration
	lastPurge time.Time
}

// New creates a Scheduler with the default HTTP client.
func New(pipe *pipeline.Pipeline, ledger storage.Ledger, feeds []string, retentionDays int, log *slog.Logger) *Scheduler {
	return &Scheduler{
		pipe:          pipe,
		ledger:        ledger,
		fetcher:       feed.New(http.DefaultClient),
		feeds:         feeds,
		retentionDays: retentionDays,
		log:           log,
		tick:          5 * time.Minute,
	}
}

// NewWithFetcher creates a Scheduler with a custom fetcher (useful for testing).
func NewWithFetcher(pipe *pipeline.Pipeline, ledger storage.Ledger, f *feed.Fetcher, feeds []string, retentionDays int, log *slog.Logger) *Scheduler {
	s := New(pipe, ledger, feeds, retentionDays, log)
	s.fetcher = f
	return s
}

// SetTickInterval overrides the default 5-minute poll interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.tick = d
}

// Run starts the scheduler loop, blocking until ctx is cancelled. The first
// pass replays only today's articles so a restart does not flood the target
// with the feed's backlog; subsequent ticks poll everything new.
func (s *Scheduler) Run(ctx context.Context) {
	s.catchUp(ctx)
	s.maybePurge(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// catchUp runs the startup scan over all feeds through the pipeline's
// catch-up path.
func (s *Scheduler) catchUp(ctx context.Context) {
	if len(s.feeds) == 0 {
		return
	}
	sources := make([]pipeline.History, 0, len(s.feeds))
	for _, url := range s.feeds {
		sources = append(sources, &feedHistory{fetcher: s.fetcher, url: url})
	}
	if err := s.pipe.CatchUp(ctx, sources); err != nil {
		s.log.Error("startup catch-up failed", "error", err)
	}
}

// feedHistory adapts one RSS feed to the pipeline's history interface.
type feedHistory struct {
	fetcher *feed.Fetcher
	url     string
}

func (h *feedHistory) Recent(ctx context.Context, limit int) ([]model.Item, error) {
	parsed, err := h.fetcher.Fetch(ctx, h.url)
	if err != nil {
		return nil, err
	}
	name := parsed.Title
	if name == "" {
		name = h.url
	}
	items := feed.Items(name, parsed, time.Now())
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	for _, url := range s.feeds {
		if ctx.Err() != nil {
			return
		}
		s.pollFeed(ctx, url)
	}
	s.maybePurge(ctx)
}

func (s *Scheduler) pollFeed(ctx context.Context, url string) {
	parsed, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		s.log.Error("fetch feed", "url", url, "error", err)
		return
	}

	name := parsed.Title
	if name == "" {
		name = url
	}

	for _, item := range feed.Items(name, parsed, time.Now()) {
		if ctx.Err() != nil {
			return
		}
		outcome, err := s.pipe.Handle(ctx, item)
		if err != nil {
			s.log.Error("feed item intake failed", "item_id", item.ID, "error", err)
			continue
		}
		if outcome == model.OutcomeDone {
			s.log.Info("feed item forwarded", "feed", name, "item_id", item.ID)
		}
	}
}

// maybePurge runs the retention purge at most once per day.
func (s *Scheduler) maybePurge(ctx context.Context) {
	if time.Since(s.lastPurge) < 24*time.Hour {
		return
	}
	s.lastPurge = time.Now()

	deleted, err := s.ledger.PurgeOlderThan(ctx, s.retentionDays)
	if err != nil {
		s.log.Error("retention purge failed", "error", err)
		return
	}
	if err := s.ledger.ResetDailyCounter(ctx); err != nil {
		s.log.Error("reset daily counter failed", "error", err)
	}
	s.log.Info("retention purge complete", "deleted", deleted, "retention_days", s.retentionDays)
}
