package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/notelens/notelens/internal/core"
)

// UsageRetentionDays is how many days of counters we keep around.
const UsageRetentionDays = 7

// DayKey formats a time as the canonical per-day counter key.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// IncrementUsage bumps the counter for the given day and returns the new
// total. Days older than the retention window are pruned on the way.
func (s *Store) IncrementUsage(ctx context.Context, day string) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var count int
	row := s.DB.QueryRowContext(ctx, `
		INSERT INTO usage_days (day, count)
		VALUES (?, 1)
		ON CONFLICT(day) DO UPDATE SET count = count + 1
		RETURNING count
	`, day)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("increment usage for %s: %w", day, err)
	}

	if parsed, err := time.Parse("2006-01-02", day); err == nil {
		cutoff := DayKey(parsed.AddDate(0, 0, -(UsageRetentionDays - 1)))
		if err := s.PruneUsageBefore(ctx, cutoff); err != nil {
			return 0, err
		}
	}

	return count, nil
}

// UsageCount returns the counter for a single day, zero when absent.
func (s *Store) UsageCount(ctx context.Context, day string) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var count int
	row := s.DB.QueryRowContext(ctx, `SELECT count FROM usage_days WHERE day = ?`, day)
	if err := row.Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("fetch usage for %s: %w", day, err)
	}
	return count, nil
}

// UsageHistory returns retained counters ordered by day descending.
func (s *Store) UsageHistory(ctx context.Context) ([]core.UsageDay, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT day, count FROM usage_days ORDER BY day DESC`)
	if err != nil {
		return nil, fmt.Errorf("fetch usage history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var history []core.UsageDay
	for rows.Next() {
		var entry core.UsageDay
		if err := rows.Scan(&entry.Day, &entry.Count); err != nil {
			return nil, fmt.Errorf("scan usage row: %w", err)
		}
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage rows: %w", err)
	}

	return history, nil
}

// PruneUsageBefore deletes counters for days strictly before cutoff.
// Cutoff uses the same YYYY-MM-DD key format, so lexical comparison is
// also chronological.
func (s *Store) PruneUsageBefore(ctx context.Context, cutoff string) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM usage_days WHERE day < ?`, cutoff); err != nil {
		return fmt.Errorf("prune usage before %s: %w", cutoff, err)
	}
	return nil
}
