package pipeline

import (
	"context"
	"fmt"
	"time"

	"newsbot/internal/model"
)

// History provides recent items from a source for the startup catch-up scan.
type History interface {
	// Recent returns up to limit items, oldest first.
	Recent(ctx context.Context, limit int) ([]model.Item, error)
}

// catchUpLimit bounds how many items are inspected per source.
const catchUpLimit = 100

// CatchUp replays today's items from each history source through the normal
// intake path. The ledger's idempotency guard makes this safe to race with
// live intake of the same items: whoever marks an item first wins.
func (p *Pipeline) CatchUp(ctx context.Context, sources []History) error {
	midnight := startOfDay(time.Now())
	forwarded := 0

	for _, src := range sources {
		items, err := src.Recent(ctx, catchUpLimit)
		if err != nil {
			p.log.Warn("catch-up scan failed for source", "error", err)
			continue
		}

		for _, item := range items {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if item.ReceivedAt.Before(midnight) || item.Text == "" {
				continue
			}

			outcome, err := p.Process(ctx, []model.Item{item})
			if err != nil {
				return fmt.Errorf("catch-up item %s: %w", item.ID, err)
			}
			if outcome == model.OutcomeDone {
				forwarded++
			}
		}
	}

	if forwarded > 0 {
		p.log.Info("catch-up scan complete", "forwarded", forwarded)
	}
	return nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
