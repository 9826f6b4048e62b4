// Package model defines the domain types used across the application.
package model

import "time"

// Item is one unit of inbound content to be evaluated for forwarding.
// Items are immutable once received.
type Item struct {
	// ID uniquely identifies the item across all sources,
	// e.g. "-1001234_567" for Telegram or "rss:sha256:..." for feeds.
	ID string
	// GroupID links the parts of a multi-part post (media album).
	// Empty for standalone items.
	GroupID    string
	Source     string
	Text       string
	Media      string
	ReceivedAt time.Time
}

// ForwardRecord is the persistent proof that an item was forwarded.
type ForwardRecord struct {
	ID          int64
	ItemID      string
	Source      string
	Text        string
	ForwardedAt time.Time
}

// DailyStat holds the forward counter for one calendar day.
type DailyStat struct {
	Date  string
	Count int
}

// LedgerStats summarizes the ledger for the stats endpoints.
type LedgerStats struct {
	TotalForwarded int `json:"total_forwarded"`
	TodayCount     int `json:"today_count"`
	Last7Days      int `json:"last_7_days"`
}

// Outcome is the terminal state of one pipeline run.
type Outcome string

// Pipeline outcomes.
const (
	// OutcomeDone means the item was delivered and recorded.
	OutcomeDone Outcome = "done"
	// OutcomeSkipped means the item was dropped before the filter stage
	// (already forwarded, quota exhausted, empty text, or near-duplicate).
	OutcomeSkipped Outcome = "skipped"
	// OutcomeRejected means the content filter declined the item.
	OutcomeRejected Outcome = "rejected"
	// OutcomeDeferred means the transport throttled the send; the item was
	// not recorded and is safe to reprocess later.
	OutcomeDeferred Outcome = "deferred"
	// OutcomeGrouped means the item was captured into a pending album and
	// will be processed when the group flushes.
	OutcomeGrouped Outcome = "grouped"
)
