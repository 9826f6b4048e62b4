// Package ratelimit implements a two-window sliding rate limiter with
// exponential backoff for outbound sends.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	minuteWindow = 60 * time.Second
	hourWindow   = 3600 * time.Second

	// Safety margin added to every computed wait.
	waitMargin = time.Second
	// Extra cooldown on top of a provider-mandated wait.
	floodMargin = 5 * time.Second
	// Backoff multiplier ceiling.
	maxBackoff = 8
)

// Stats is a snapshot of the limiter state for the stats endpoint.
type Stats struct {
	RequestsLastMinute int `json:"requests_last_minute"`
	RequestsLastHour   int `json:"requests_last_hour"`
	MaxPerMinute       int `json:"max_per_minute"`
	MaxPerHour         int `json:"max_per_hour"`
	ConsecutiveWaits   int `json:"consecutive_waits"`
}

// Limiter tracks send timestamps in a minute and an hour window and delays
// callers when either window is at capacity. It is safe for concurrent use,
// though the intake path calls it sequentially.
type Limiter struct {
	mu               sync.Mutex
	perMinute        int
	perHour          int
	minute           []time.Time
	hour             []time.Time
	consecutiveWaits int

	log *slog.Logger

	// Clock and sleeper, overridable in tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	// onWait, when set, observes every internal rate-limit wait.
	onWait func(d time.Duration)
}

// New creates a Limiter with the given per-minute and per-hour caps.
func New(perMinute, perHour int, log *slog.Logger) *Limiter {
	return &Limiter{
		perMinute: perMinute,
		perHour:   perHour,
		log:       log,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// NewWithClock creates a Limiter with an injected clock and sleeper
// (useful for testing).
func NewWithClock(perMinute, perHour int, log *slog.Logger, now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) *Limiter {
	l := New(perMinute, perHour, log)
	l.now = now
	l.sleep = sleep
	return l
}

// OnWait registers a hook observing internal waits, e.g. a metrics counter.
func (l *Limiter) OnWait(fn func(d time.Duration)) {
	l.mu.Lock()
	l.onWait = fn
	l.mu.Unlock()
}

// Acquire blocks until it is safe to send, then records a send timestamp
// in both windows. The only error it returns is ctx.Err() when the context
// is cancelled mid-wait.
//
// The minute window is checked first; the hour window is only consulted
// when the minute window has headroom. Each wait escalates the backoff
// multiplier (2^n, capped at 8x); a pass with no wait resets it.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	now := l.now()
	l.prune(now)

	var wait time.Duration
	switch {
	case len(l.minute) >= l.perMinute:
		wait = l.waitFor(l.minute, minuteWindow, now)
		l.log.Warn("rate limit reached", "window", "minute", "wait", wait)
	case len(l.hour) >= l.perHour:
		wait = l.waitFor(l.hour, hourWindow, now)
		l.log.Warn("rate limit reached", "window", "hour", "wait", wait)
	default:
		l.consecutiveWaits = 0
	}

	if wait > 0 {
		hook := l.onWait
		l.mu.Unlock()
		if hook != nil {
			hook(wait)
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
		l.mu.Lock()
		l.consecutiveWaits++
	}

	l.record(l.now())
	l.mu.Unlock()
	return nil
}

// HandleFloodWait honors a provider-mandated cooldown. It sleeps the
// requested duration plus a safety margin, then clears both windows and
// resets the backoff state: the external cooldown supersedes all internal
// bookkeeping.
func (l *Limiter) HandleFloodWait(ctx context.Context, d time.Duration) error {
	wait := d + floodMargin
	l.log.Warn("flood wait requested by provider", "wait", wait)

	if err := l.sleep(ctx, wait); err != nil {
		return err
	}

	l.mu.Lock()
	l.minute = l.minute[:0]
	l.hour = l.hour[:0]
	l.consecutiveWaits = 0
	l.mu.Unlock()

	l.log.Info("flood wait completed, limiter reset")
	return nil
}

// Snapshot returns current limiter statistics.
func (l *Limiter) Snapshot() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return Stats{
		RequestsLastMinute: len(l.minute),
		RequestsLastHour:   len(l.hour),
		MaxPerMinute:       l.perMinute,
		MaxPerHour:         l.perHour,
		ConsecutiveWaits:   l.consecutiveWaits,
	}
}

func (l *Limiter) prune(now time.Time) {
	l.minute = pruneWindow(l.minute, now, minuteWindow)
	l.hour = pruneWindow(l.hour, now, hourWindow)
}

func pruneWindow(w []time.Time, now time.Time, window time.Duration) []time.Time {
	for len(w) > 0 && now.Sub(w[0]) > window {
		w = w[1:]
	}
	return w
}

// waitFor computes the delay until the window's oldest timestamp ages out,
// plus the safety margin, scaled by the current backoff multiplier.
func (l *Limiter) waitFor(w []time.Time, window time.Duration, now time.Time) time.Duration {
	if len(w) == 0 {
		return 0
	}
	wait := window - now.Sub(w[0]) + waitMargin
	if l.consecutiveWaits > 0 {
		mult := 1 << l.consecutiveWaits
		if mult > maxBackoff {
			mult = maxBackoff
		}
		wait *= time.Duration(mult)
	}
	if wait < 0 {
		return 0
	}
	return wait
}

// record appends a timestamp to both windows, keeping each bounded by its cap.
func (l *Limiter) record(t time.Time) {
	l.minute = append(l.minute, t)
	if len(l.minute) > l.perMinute {
		l.minute = l.minute[len(l.minute)-l.perMinute:]
	}
	l.hour = append(l.hour, t)
	if len(l.hour) > l.perHour {
		l.hour = l.hour[len(l.hour)-l.perHour:]
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
