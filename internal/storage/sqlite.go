package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
	"unicode/utf8"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"newsbot/internal/model"
	"newsbot/migrations"
)

const (
	timeLayout = "2006-01-02T15:04:05Z"
	dateLayout = "2006-01-02"

	// Stored text is bounded so the ledger never grows with message size.
	maxSnippetLen = 500
)

// SQLite implements Ledger backed by a SQLite database.
type SQLite struct {
	db *sql.DB

	// now is the clock used for day boundaries and timestamps.
	// Overridable in tests.
	now func() time.Time
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// IsForwarded reports whether the item id has a forward record.
func (s *SQLite) IsForwarded(ctx context.Context, itemID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM forwarded_messages WHERE message_id = ? LIMIT 1`, itemID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check forwarded: %w", err)
	}
	return true, nil
}

// MarkForwarded inserts a forward record for the item.
// The unique constraint on message_id serializes concurrent markers;
// the loser gets ErrDuplicate.
func (s *SQLite) MarkForwarded(ctx context.Context, itemID, source, text string) error {
	// Snippet bound is in characters, never splitting a rune.
	if utf8.RuneCountInString(text) > maxSnippetLen {
		text = string([]rune(text)[:maxSnippetLen])
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO forwarded_messages (message_id, source_channel, message_text, forwarded_at)
		 VALUES (?, ?, ?, ?)`,
		itemID, source, nullable(text), s.now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("mark forwarded: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrDuplicate
	}
	return nil
}

// TodayCount returns the number of items forwarded today.
func (s *SQLite) TodayCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT posts_count FROM daily_stats WHERE date = ?`, s.today(),
	).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("today count: %w", err)
	}
	return count, nil
}

// IncrementTodayCount bumps today's counter and returns the new value.
func (s *SQLite) IncrementTodayCount(ctx context.Context) (int, error) {
	now := s.now().UTC().Format(timeLayout)
	var count int
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO daily_stats (date, posts_count, created_at, updated_at)
		 VALUES (?, 1, ?, ?)
		 ON CONFLICT(date) DO UPDATE SET
		     posts_count = posts_count + 1,
		     updated_at = excluded.updated_at
		 RETURNING posts_count`,
		s.today(), now, now,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment today count: %w", err)
	}
	return count, nil
}

// ResetDailyCounter creates today's row with a zero count if it is missing.
func (s *SQLite) ResetDailyCounter(ctx context.Context) error {
	now := s.now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO daily_stats (date, posts_count, created_at, updated_at)
		 VALUES (?, 0, ?, ?)`,
		s.today(), now, now,
	)
	if err != nil {
		return fmt.Errorf("reset daily counter: %w", err)
	}
	return nil
}

// RecentTexts returns up to limit forwarded texts, most recent first.
func (s *SQLite) RecentTexts(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_text FROM forwarded_messages
		 WHERE message_text IS NOT NULL
		 ORDER BY forwarded_at DESC, id DESC
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent texts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var texts []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan recent text: %w", err)
		}
		texts = append(texts, t)
	}
	return texts, rows.Err()
}

// PurgeOlderThan deletes forward records older than the given number of days.
func (s *SQLite) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := s.now().UTC().AddDate(0, 0, -days).Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM forwarded_messages WHERE forwarded_at < ?`, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("purge old records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// Stats returns ledger totals for the operational surface.
func (s *SQLite) Stats(ctx context.Context) (*model.LedgerStats, error) {
	st := &model.LedgerStats{}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM forwarded_messages`,
	).Scan(&st.TotalForwarded)
	if err != nil {
		return nil, fmt.Errorf("count forwarded: %w", err)
	}

	weekAgo := s.now().UTC().AddDate(0, 0, -7).Format(timeLayout)
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM forwarded_messages WHERE forwarded_at >= ?`, weekAgo,
	).Scan(&st.Last7Days)
	if err != nil {
		return nil, fmt.Errorf("count last 7 days: %w", err)
	}

	st.TodayCount, err = s.TodayCount(ctx)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s *SQLite) today() string {
	return s.now().UTC().Format(dateLayout)
}

func nullable(text string) any {
	if text == "" {
		return nil
	}
	return text
}
