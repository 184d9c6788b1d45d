package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SequenceRepo hands out per-year item numbers from the counters table.
type SequenceRepo struct{ DB *sql.DB }

func NewSequenceRepo(db *sql.DB) *SequenceRepo { return &SequenceRepo{DB: db} }

// EnsureSchema creates the counters table when missing.
func (r *SequenceRepo) EnsureSchema(ctx context.Context) error {
	const q = `
create table if not exists counters (
  year     int primary key,
  last_seq int not null default 0
)`
	if _, err := r.DB.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("ensure counters table: %w", err)
	}
	return nil
}

// Next increments and returns the counter for the year in one statement, so
// concurrent callers can never observe the same value.
func (r *SequenceRepo) Next(ctx context.Context, year int) (int, error) {
	const q = `
insert into counters (year, last_seq) values ($1, 1)
on conflict (year) do update set last_seq = counters.last_seq + 1
returning last_seq`
	var seq int
	if err := r.DB.QueryRowContext(ctx, q, year).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next sequence for %d: %w", year, err)
	}
	return seq, nil
}
