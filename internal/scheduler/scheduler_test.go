package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"newsbot/internal/ai"
	"newsbot/internal/feed"
	"newsbot/internal/filter"
	"newsbot/internal/metrics"
	"newsbot/internal/pipeline"
	"newsbot/internal/ratelimit"
	"newsbot/internal/storage"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>City News</title>
    <item>
      <title>Transport plan approved</title>
      <link>https://example.com/news/1</link>
      <guid>news-1</guid>
      <description>The council approved the new public transport development plan tonight.</description>
    </item>
  </channel>
</rss>`

type mockHTTP struct {
	body string
	err  error
}

func (m *mockHTTP) Do(*http.Request) (*http.Response, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(m.body)),
	}, nil
}

type countingSender struct {
	mu    sync.Mutex
	sends int
}

func (s *countingSender) Send(context.Context, int64, string, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends++
	return nil
}

func (s *countingSender) SendForReview(context.Context, int64, string, string) error {
	return s.Send(context.Background(), 0, "", "")
}

func (s *countingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sends
}

// recordingLedger observes the scheduler's retention calls; everything else
// is handled by the pipeline's own ledger.
type recordingLedger struct {
	storage.Ledger
	purges []int
	resets int
}

func (l *recordingLedger) PurgeOlderThan(_ context.Context, days int) (int64, error) {
	l.purges = append(l.purges, days)
	return 0, nil
}

func (l *recordingLedger) ResetDailyCounter(context.Context) error {
	l.resets++
	return nil
}

func newTestScheduler(t *testing.T, client feed.HTTPClient, feeds []string) (*Scheduler, *countingSender, *recordingLedger) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	ledger, err := storage.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = ledger.Close() })

	limiter := ratelimit.NewWithClock(100, 1000, log, time.Now,
		func(context.Context, time.Duration) error { return nil })
	sender := &countingSender{}
	pipe := pipeline.New(
		pipeline.Config{TargetChat: 1000, DailyCap: 5, SimilarityThreshold: 85, DebounceInterval: 50 * time.Millisecond},
		ledger, sender, filter.New(nil, nil),
		ai.New("", "", "", log), limiter,
		metrics.New(prometheus.NewRegistry()), log)
	t.Cleanup(pipe.Close)

	rec := &recordingLedger{}
	s := NewWithFetcher(pipe, rec, feed.New(client), feeds, 30, log)
	return s, sender, rec
}

func TestRunOnceForwardsFeedItems(t *testing.T) {
	s, sender, _ := newTestScheduler(t, &mockHTTP{body: sampleRSS}, []string{"https://example.com/rss"})
	ctx := context.Background()

	s.runOnce(ctx)
	if got := sender.count(); got != 1 {
		t.Fatalf("got %d sends after first poll, want 1", got)
	}

	// A second poll sees the same article; the ledger keeps it from going
	// out twice.
	s.runOnce(ctx)
	if got := sender.count(); got != 1 {
		t.Errorf("got %d sends after second poll, want 1", got)
	}
}

func TestRunOnceSurvivesFetchFailure(t *testing.T) {
	s, sender, rec := newTestScheduler(t, &mockHTTP{err: errors.New("connection refused")}, []string{"https://example.com/rss"})

	s.runOnce(context.Background())
	if got := sender.count(); got != 0 {
		t.Errorf("got %d sends, want 0", got)
	}
	// The purge still runs even when every feed fails.
	if len(rec.purges) != 1 {
		t.Errorf("got %d purges, want 1", len(rec.purges))
	}
}

func TestCatchUpSkipsStaleArticles(t *testing.T) {
	now := time.Now().UTC()
	body := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>City News</title>
    <item>
      <title>Stale article from the backlog</title>
      <guid>stale-1</guid>
      <description>An older story that must not be replayed on restart.</description>
      <pubDate>%s</pubDate>
    </item>
    <item>
      <title>Fresh article from today</title>
      <guid>fresh-1</guid>
      <description>The council approved the new public transport plan.</description>
      <pubDate>%s</pubDate>
    </item>
  </channel>
</rss>`,
		now.AddDate(0, 0, -2).Format(time.RFC1123),
		now.Format(time.RFC1123))

	s, sender, _ := newTestScheduler(t, &mockHTTP{body: body}, []string{"https://example.com/rss"})

	s.catchUp(context.Background())
	if got := sender.count(); got != 1 {
		t.Errorf("got %d sends from catch-up, want 1 (today's article only)", got)
	}
}

func TestMaybePurgeRunsOncePerDay(t *testing.T) {
	s, _, rec := newTestScheduler(t, &mockHTTP{body: sampleRSS}, nil)
	ctx := context.Background()

	s.runOnce(ctx)
	s.runOnce(ctx)

	if len(rec.purges) != 1 {
		t.Fatalf("got %d purges for back-to-back runs, want 1", len(rec.purges))
	}
	if rec.purges[0] != 30 {
		t.Errorf("purge horizon = %d days, want 30", rec.purges[0])
	}
	if rec.resets != 1 {
		t.Errorf("got %d counter resets, want 1", rec.resets)
	}

	// Force the day boundary; the next run purges again.
	s.lastPurge = time.Now().Add(-25 * time.Hour)
	s.runOnce(ctx)
	if len(rec.purges) != 2 {
		t.Errorf("got %d purges after day rollover, want 2", len(rec.purges))
	}
}
