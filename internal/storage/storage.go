// Package storage defines the forward ledger interface and its implementations.
package storage

import (
	"context"
	"errors"

	"newsbot/internal/model"
)

// ErrDuplicate reports that a forward record for the item id already exists.
// Callers racing to mark the same item treat it as success, not failure.
var ErrDuplicate = errors.New("already forwarded")

// Ledger is the persistent idempotency and quota record store.
type Ledger interface {
	// IsForwarded reports whether the item id has a forward record.
	IsForwarded(ctx context.Context, itemID string) (bool, error)
	// MarkForwarded inserts a forward record. Returns ErrDuplicate if a
	// record for itemID already exists; any other error is an I/O failure.
	MarkForwarded(ctx context.Context, itemID, source, text string) error

	// TodayCount returns the forward counter for the current day,
	// zero if no row exists yet.
	TodayCount(ctx context.Context) (int, error)
	// IncrementTodayCount atomically bumps today's counter, creating the
	// row if absent, and returns the post-increment value.
	IncrementTodayCount(ctx context.Context) (int, error)
	// ResetDailyCounter ensures today's row exists with a zero count,
	// without touching an existing row.
	ResetDailyCounter(ctx context.Context) error

	// RecentTexts returns up to limit non-empty texts, most recent first.
	RecentTexts(ctx context.Context, limit int) ([]string, error)
	// PurgeOlderThan deletes forward records past the retention horizon
	// and returns the number of rows deleted.
	PurgeOlderThan(ctx context.Context, days int) (int64, error)

	// Stats summarizes the ledger for the operational surface.
	Stats(ctx context.Context) (*model.LedgerStats, error)

	Close() error
}
