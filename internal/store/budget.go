package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Budget tracks daily token usage, bucketed by UTC day.
type Budget struct {
	db *sql.DB
}

func NewBudget(db *sql.DB) *Budget {
	return &Budget{db: db}
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// GetDailyUsage returns the tokens consumed so far today (UTC).
func (b *Budget) GetDailyUsage(ctx context.Context) (int, error) {
	var tokens int
	err := b.db.QueryRowContext(ctx,
		"SELECT tokens FROM usage_log WHERE day = ?;", dayKey(time.Now())).Scan(&tokens)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read daily usage: %w", err)
	}
	return tokens, nil
}

// RecordUsage adds tokens to today's bucket.
func (b *Budget) RecordUsage(ctx context.Context, tokens int) error {
	if tokens <= 0 {
		return nil
	}
	_, err := b.db.ExecContext(ctx, `
INSERT INTO usage_log(day, tokens) VALUES(?, ?)
ON CONFLICT(day) DO UPDATE SET tokens = tokens + excluded.tokens;
`, dayKey(time.Now()), tokens)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}
