package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fxsignals/internal/model"
)

// Record persists a backtest recommendation and fills in its assigned ID.
func (s *Store) Record(ctx context.Context, rec *model.BacktestRecommendation) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO recommendations (
			symbol, cur_fast, cur_slow, cur_atr, prop_fast, prop_slow, prop_atr,
			sample_size, baseline, projected, improvement, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Symbol,
		rec.Current.FastPeriod, rec.Current.SlowPeriod, rec.Current.ATRStopMultiplier,
		rec.Proposed.FastPeriod, rec.Proposed.SlowPeriod, rec.Proposed.ATRStopMultiplier,
		rec.SampleSize, rec.BaselineWinRate, rec.ProjectedWinRate, rec.Improvement,
		string(rec.Status), rec.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("sqlite insert recommendation: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		rec.ID = id
	}
	return nil
}

// ListRecommendations returns recommendations for a symbol, newest first.
// An empty symbol lists all.
func (s *Store) ListRecommendations(ctx context.Context, symbol string) ([]model.BacktestRecommendation, error) {
	query := `
		SELECT id, symbol, cur_fast, cur_slow, cur_atr, prop_fast, prop_slow,
		       prop_atr, sample_size, baseline, projected, improvement, status,
		       created_at
		FROM recommendations`
	args := []any{}
	if symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query recommendations: %w", err)
	}
	defer rows.Close()

	var out []model.BacktestRecommendation
	for rows.Next() {
		var (
			rec       model.BacktestRecommendation
			status    string
			createdAt int64
		)
		if err := rows.Scan(
			&rec.ID, &rec.Symbol,
			&rec.Current.FastPeriod, &rec.Current.SlowPeriod, &rec.Current.ATRStopMultiplier,
			&rec.Proposed.FastPeriod, &rec.Proposed.SlowPeriod, &rec.Proposed.ATRStopMultiplier,
			&rec.SampleSize, &rec.BaselineWinRate, &rec.ProjectedWinRate,
			&rec.Improvement, &status, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite scan recommendation: %w", err)
		}
		rec.Status = model.RecommendationStatus(status)
		rec.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ApproveRecommendation marks a pending recommendation approved and installs
// its proposed parameters as the symbol's active set, bumping the version.
func (s *Store) ApproveRecommendation(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin approve: %w", err)
	}
	defer tx.Rollback()

	var (
		symbol     string
		fast, slow int
		atr        float64
	)
	err = tx.QueryRowContext(ctx, `
		SELECT symbol, prop_fast, prop_slow, prop_atr
		FROM recommendations
		WHERE id = ? AND status = ?`, id, string(model.RecommendationPending),
	).Scan(&symbol, &fast, &slow, &atr)
	if err == sql.ErrNoRows {
		return fmt.Errorf("recommendation %d: not found or not pending", id)
	}
	if err != nil {
		return fmt.Errorf("sqlite load recommendation %d: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE recommendations SET status = ? WHERE id = ?`,
		string(model.RecommendationApproved), id); err != nil {
		return fmt.Errorf("sqlite approve recommendation %d: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO strategy_parameters (symbol, fast_period, slow_period, atr_mult, version, approved_at)
		VALUES (?, ?, ?, ?, 1, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			fast_period = excluded.fast_period,
			slow_period = excluded.slow_period,
			atr_mult    = excluded.atr_mult,
			version     = strategy_parameters.version + 1,
			approved_at = excluded.approved_at`,
		symbol, fast, slow, atr, time.Now().Unix()); err != nil {
		return fmt.Errorf("sqlite install parameters for %s: %w", symbol, err)
	}

	return tx.Commit()
}

// RejectRecommendation marks a pending recommendation rejected.
func (s *Store) RejectRecommendation(ctx context.Context, id int64) error {
	return s.setRecommendationStatus(ctx, id, model.RecommendationPending, model.RecommendationRejected)
}

// RollBackRecommendation reverts an approved recommendation and removes the
// symbol's parameter override, falling back to defaults.
func (s *Store) RollBackRecommendation(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin rollback: %w", err)
	}
	defer tx.Rollback()

	var symbol string
	err = tx.QueryRowContext(ctx, `
		SELECT symbol FROM recommendations
		WHERE id = ? AND status = ?`, id, string(model.RecommendationApproved),
	).Scan(&symbol)
	if err == sql.ErrNoRows {
		return fmt.Errorf("recommendation %d: not found or not approved", id)
	}
	if err != nil {
		return fmt.Errorf("sqlite load recommendation %d: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE recommendations SET status = ? WHERE id = ?`,
		string(model.RecommendationRolledBack), id); err != nil {
		return fmt.Errorf("sqlite roll back recommendation %d: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM strategy_parameters WHERE symbol = ?`, symbol); err != nil {
		return fmt.Errorf("sqlite remove parameters for %s: %w", symbol, err)
	}

	return tx.Commit()
}

func (s *Store) setRecommendationStatus(ctx context.Context, id int64, from, to model.RecommendationStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE recommendations SET status = ? WHERE id = ? AND status = ?`,
		string(to), id, string(from))
	if err != nil {
		return fmt.Errorf("sqlite update recommendation %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("recommendation %d: not found or not %s", id, from)
	}
	return nil
}

// GetApprovedParameters returns the approved parameter override for symbol,
// or nil when none exists (callers fall back to defaults).
func (s *Store) GetApprovedParameters(ctx context.Context, symbol string) (*model.StrategyParameters, error) {
	var p model.StrategyParameters
	err := s.db.QueryRowContext(ctx, `
		SELECT fast_period, slow_period, atr_mult, version
		FROM strategy_parameters
		WHERE symbol = ?`, symbol,
	).Scan(&p.FastPeriod, &p.SlowPeriod, &p.ATRStopMultiplier, &p.Version)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite query parameters: %w", err)
	}
	return &p, nil
}
