// Package pipeline orchestrates the message intake path: album grouping,
// idempotency and quota guards, near-duplicate detection, content filtering,
// rate limiting, delivery, and ledger bookkeeping.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"newsbot/internal/ai"
	"newsbot/internal/album"
	"newsbot/internal/dedup"
	"newsbot/internal/filter"
	"newsbot/internal/metrics"
	"newsbot/internal/model"
	"newsbot/internal/ratelimit"
	"newsbot/internal/storage"
)

// Sender delivers composed posts to a chat.
type Sender interface {
	// Send publishes the text (with optional media) to the chat.
	Send(ctx context.Context, chatID int64, text, media string) error
	// SendForReview posts the text to the chat with approve/reject controls.
	SendForReview(ctx context.Context, chatID int64, text, media string) error
}

// ThrottledError reports a provider-mandated cooldown. The item that
// triggered it is not recorded and is safe to reprocess later.
type ThrottledError struct {
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("throttled by provider, retry after %s", e.RetryAfter)
}

// Config holds the pipeline tunables.
type Config struct {
	TargetChat int64
	// ReviewChat, when non-zero, routes posts through the review channel
	// instead of publishing directly.
	ReviewChat int64
	// DailyCap is the maximum forwards per calendar day; 0 means unlimited.
	DailyCap int
	// SimilarityThreshold is the dedup score (0-100) at which a text
	// counts as a duplicate.
	SimilarityThreshold int
	// DebounceInterval is how long an album waits for more parts.
	DebounceInterval time.Duration
	// RecentLimit bounds the recent-history pool for dedup.
	RecentLimit int
	// MinDedupLen is the text length below which dedup is skipped.
	MinDedupLen int
}

// Pipeline runs every inbound item through the intake state machine.
// Ordering-sensitive stages are serialized: one item is processed at a
// time, whether it arrives live or from a flushed album.
type Pipeline struct {
	cfg     Config
	ledger  storage.Ledger
	sender  Sender
	filter  *filter.Filter
	ai      *ai.Analyzer
	limiter *ratelimit.Limiter
	dedup   *dedup.Deduplicator
	albums  *album.Aggregator
	metrics *metrics.Metrics
	log     *slog.Logger

	sem chan struct{}
}

// New wires a Pipeline. The album aggregator is owned by the pipeline;
// flushed groups re-enter the sequential intake path on their own goroutine.
func New(
	cfg Config,
	ledger storage.Ledger,
	sender Sender,
	f *filter.Filter,
	analyzer *ai.Analyzer,
	limiter *ratelimit.Limiter,
	m *metrics.Metrics,
	log *slog.Logger,
) *Pipeline {
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 20
	}
	if cfg.MinDedupLen <= 0 {
		cfg.MinDedupLen = 50
	}
	p := &Pipeline{
		cfg:     cfg,
		ledger:  ledger,
		sender:  sender,
		filter:  f,
		ai:      analyzer,
		limiter: limiter,
		dedup:   dedup.New(cfg.SimilarityThreshold),
		metrics: m,
		log:     log,
		sem:     make(chan struct{}, 1),
	}
	p.albums = album.New(cfg.DebounceInterval, p.flushAlbum, log)
	return p
}

// Handle runs one inbound item through the pipeline. Items that belong to a
// media group are captured by the aggregator and return OutcomeGrouped; the
// group is processed as a whole once its debounce window closes.
func (p *Pipeline) Handle(ctx context.Context, item model.Item) (model.Outcome, error) {
	p.metrics.Received.WithLabelValues(item.Source).Inc()

	if p.albums.Handle(item) {
		return model.OutcomeGrouped, nil
	}
	return p.Process(ctx, []model.Item{item})
}

// flushAlbum feeds a flushed group back into the intake path. It runs on
// the debounce timer's goroutine; failures are logged, never re-raised.
func (p *Pipeline) flushAlbum(items []model.Item) {
	outcome, err := p.Process(context.Background(), items)
	if err != nil {
		p.log.Error("album processing failed", "group_id", items[0].GroupID, "error", err)
		return
	}
	p.log.Debug("album processed", "group_id", items[0].GroupID, "outcome", string(outcome))
}

// Process runs an item or an ordered group through the intake state machine.
// The first item's id and text stand for the whole group.
func (p *Pipeline) Process(ctx context.Context, items []model.Item) (model.Outcome, error) {
	select {
	case p.sem <- struct{}{}:
		defer func() { <-p.sem }()
	case <-ctx.Done():
		return model.OutcomeSkipped, ctx.Err()
	}

	start := time.Now()
	defer func() { p.metrics.ProcessingTime.Observe(time.Since(start).Seconds()) }()

	first := items[0]
	text := first.Text

	if text == "" {
		return p.skip(first, "empty text")
	}

	forwarded, err := p.ledger.IsForwarded(ctx, first.ID)
	if err != nil {
		return p.fail("storage", fmt.Errorf("check forwarded: %w", err))
	}
	if forwarded {
		p.log.Debug("already forwarded", "item_id", first.ID)
		return p.skip(first, "already forwarded")
	}

	if p.cfg.DailyCap > 0 {
		count, err := p.ledger.TodayCount(ctx)
		if err != nil {
			return p.fail("storage", fmt.Errorf("today count: %w", err))
		}
		if count >= p.cfg.DailyCap {
			p.log.Info("daily limit reached", "limit", p.cfg.DailyCap)
			return p.skip(first, "daily limit")
		}
	}

	if utf8.RuneCountInString(text) > p.cfg.MinDedupLen {
		recent, err := p.ledger.RecentTexts(ctx, p.cfg.RecentLimit)
		if err != nil {
			return p.fail("storage", fmt.Errorf("recent texts: %w", err))
		}
		if res := p.dedup.Check(text, recent); res.Duplicate {
			p.log.Info("duplicate content detected",
				"item_id", first.ID, "score", res.Score)
			return p.skip(first, "duplicate")
		}
	}

	verdict := p.filter.Evaluate(text)
	if !verdict.Accept {
		p.log.Info("message rejected", "item_id", first.ID, "reason", verdict.Reason)
		p.metrics.Rejected.WithLabelValues(metrics.RejectReason(verdict.Reason)).Inc()
		return model.OutcomeRejected, nil
	}
	p.log.Info("message accepted", "item_id", first.ID, "source", first.Source, "reason", verdict.Reason)

	analysis := p.ai.Analyze(ctx, verdict.Cleaned)
	finalText := Compose(verdict.Cleaned, analysis)

	if err := p.limiter.Acquire(ctx); err != nil {
		return model.OutcomeSkipped, err
	}

	if err := p.deliver(ctx, finalText, first.Media); err != nil {
		var throttled *ThrottledError
		if errors.As(err, &throttled) {
			p.metrics.RateLimitWaits.Inc()
			p.metrics.Errors.WithLabelValues("flood_wait").Inc()
			if werr := p.limiter.HandleFloodWait(ctx, throttled.RetryAfter); werr != nil {
				return model.OutcomeDeferred, werr
			}
			return model.OutcomeDeferred, nil
		}
		p.metrics.Errors.WithLabelValues("send_failed").Inc()
		return model.OutcomeDeferred, fmt.Errorf("send: %w", err)
	}

	// Every part of a group gets a record so a straggler re-ingested later
	// cannot trigger a second forward of the same content.
	for _, item := range items {
		err := p.ledger.MarkForwarded(ctx, item.ID, item.Source, item.Text)
		if err != nil && !errors.Is(err, storage.ErrDuplicate) {
			return model.OutcomeDone, p.failErr("storage", fmt.Errorf("mark forwarded: %w", err))
		}
	}

	count, err := p.ledger.IncrementTodayCount(ctx)
	if err != nil {
		return model.OutcomeDone, p.failErr("storage", fmt.Errorf("increment count: %w", err))
	}

	p.metrics.Forwarded.Inc()
	p.metrics.DailyPosts.Set(float64(count))
	p.log.Info("forwarded", "item_id", first.ID, "today", count, "limit", p.cfg.DailyCap)
	return model.OutcomeDone, nil
}

// PendingAlbums reports the number of groups awaiting their debounce window.
func (p *Pipeline) PendingAlbums() int {
	return p.albums.PendingGroups()
}

// Close stops the album aggregator's pending timers and waits for any
// in-flight album flush, so its send and ledger commit complete before the
// caller tears down the storage.
func (p *Pipeline) Close() {
	p.albums.Close()
}

func (p *Pipeline) deliver(ctx context.Context, text, media string) error {
	if p.cfg.ReviewChat != 0 {
		return p.sender.SendForReview(ctx, p.cfg.ReviewChat, text, media)
	}
	return p.sender.Send(ctx, p.cfg.TargetChat, text, media)
}

func (p *Pipeline) skip(item model.Item, reason string) (model.Outcome, error) {
	p.metrics.Rejected.WithLabelValues(metrics.RejectReason(reason)).Inc()
	return model.OutcomeSkipped, nil
}

func (p *Pipeline) fail(errType string, err error) (model.Outcome, error) {
	return model.OutcomeSkipped, p.failErr(errType, err)
}

func (p *Pipeline) failErr(errType string, err error) error {
	p.metrics.Errors.WithLabelValues(errType).Inc()
	return err
}
