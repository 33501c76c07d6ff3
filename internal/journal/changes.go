package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kettlebridge/internal/device"
)

// Entry is one recorded state transition.
type Entry struct {
	ID    int64
	At    time.Time
	Field device.Field
	Old   string
	New   string
}

type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Append(ctx context.Context, at time.Time, change device.Change) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO changes(at, field, old_value, new_value)
		VALUES (?, ?, ?, ?)
	`, toUnixMillis(at), string(change.Field), change.Old, change.New)
	if err != nil {
		return fmt.Errorf("append change: %w", err)
	}

	return nil
}

// Recent returns the newest entries first, at most limit of them.
func (r *Repo) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, at, field, old_value, new_value
		FROM changes
		ORDER BY at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e     Entry
			atMs  int64
			field string
		)
		if err := rows.Scan(&e.ID, &atMs, &field, &e.Old, &e.New); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		e.At = fromUnixMillis(atMs)
		e.Field = device.Field(field)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changes: %w", err)
	}

	return out, nil
}

// PruneOlderThan deletes entries recorded before cutoff and reports how many
// rows went away.
func (r *Repo) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM changes WHERE at < ?
	`, toUnixMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune changes: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count pruned changes: %w", err)
	}

	return n, nil
}
