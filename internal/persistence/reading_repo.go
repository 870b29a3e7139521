package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Reading is one recorded sample from an instrument.
type Reading struct {
	ID         int64
	Source     string
	Name       string
	Value      float64
	Unit       string
	RecordedAt time.Time
}

type ReadingRepo struct {
	db *sql.DB
}

func NewReadingRepo(db *sql.DB) *ReadingRepo {
	return &ReadingRepo{db: db}
}

func (r *ReadingRepo) Insert(ctx context.Context, rd Reading) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO readings(source, name, value, unit, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`, rd.Source, rd.Name, rd.Value, rd.Unit, toUnixMillis(rd.RecordedAt))
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}

	return nil
}

// RecentBySource lists the newest readings for one instrument, newest
// first.
func (r *ReadingRepo) RecentBySource(ctx context.Context, source string, limit int) ([]Reading, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source, name, value, unit, recorded_at
		FROM readings
		WHERE source = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?
	`, source, limit)
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	defer rows.Close()

	var out []Reading
	for rows.Next() {
		var (
			rd         Reading
			recordedMs int64
		)
		if err := rows.Scan(&rd.ID, &rd.Source, &rd.Name, &rd.Value, &rd.Unit, &recordedMs); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		rd.RecordedAt = fromUnixMillis(recordedMs)
		out = append(out, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate readings: %w", err)
	}

	return out, nil
}

// PruneBefore drops readings recorded before the cutoff and reports how
// many were removed.
func (r *ReadingRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM readings WHERE recorded_at < ?
	`, toUnixMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune readings: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count pruned readings: %w", err)
	}

	return n, nil
}

func toUnixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.UnixMilli()
}

func fromUnixMillis(v int64) time.Time {
	if v <= 0 {
		return time.Time{}
	}

	return time.UnixMilli(v)
}
