package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// LastRun returns the persisted last-run timestamp for a scheduler job, or
// the zero time when the job has never run.
func (s *Store) LastRun(ctx context.Context, job string) (time.Time, error) {
	var ts int64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_run FROM job_runs WHERE job = ?`, job).Scan(&ts)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite query last run: %w", err)
	}
	return time.Unix(ts, 0).UTC(), nil
}

// SetLastRun records that a scheduler job ran at t.
func (s *Store) SetLastRun(ctx context.Context, job string, t time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_runs (job, last_run) VALUES (?, ?)
		ON CONFLICT(job) DO UPDATE SET last_run = excluded.last_run`,
		job, t.Unix())
	if err != nil {
		return fmt.Errorf("sqlite set last run: %w", err)
	}
	return nil
}
