// Package feed ingests RSS feeds as a secondary item source.
package feed

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"newsbot/internal/model"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads and parses RSS feeds.
type Fetcher struct {
	client HTTPClient
}

// New creates a Fetcher with the given HTTP client.
func New(client HTTPClient) *Fetcher {
	return &Fetcher{client: client}
}

// Fetch downloads and parses an RSS feed from the given URL.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "NewsForwardBot/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

// ItemID returns a stable ledger id for an RSS item.
// If the item has no GUID, a SHA-256 hash of title+link is used, so the
// same article keeps the same id across polls.
func ItemID(item *gofeed.Item) string {
	if item.GUID != "" {
		return "rss:" + item.GUID
	}
	h := sha256.Sum256([]byte(item.Title + "|" + item.Link))
	return fmt.Sprintf("rss:sha256:%x", h[:16])
}

// Items converts a parsed feed into pipeline items. RSS items never carry a
// group id; each article is standalone.
func Items(sourceName string, feed *gofeed.Feed, now time.Time) []model.Item {
	items := make([]model.Item, 0, len(feed.Items))
	for _, it := range feed.Items {
		text := it.Title
		if it.Description != "" {
			text += "\n\n" + it.Description
		}
		if it.Link != "" {
			text += "\n\n" + it.Link
		}

		received := now
		if it.PublishedParsed != nil {
			received = *it.PublishedParsed
		}

		items = append(items, model.Item{
			ID:         ItemID(it),
			Source:     sourceName,
			Text:       text,
			ReceivedAt: received,
		})
	}
	return items
}
