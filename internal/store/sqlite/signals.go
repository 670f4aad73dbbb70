package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"fxsignals/internal/model"
)

const signalColumns = `id, symbol, direction, entry, current_price, stop, tp1, tp2, tp3,
	risk_reward, confidence, tier, trade_live, position_pct, snapshot, rationale,
	created_at, expires_at, outcome, outcome_price, outcome_time, pips`

// CreateIfAbsent inserts the signal unless its ID already exists. A
// duplicate insert is a harmless re-trigger and stays silent.
func (s *Store) CreateIfAbsent(ctx context.Context, sig *model.Signal) error {
	snapshot, err := json.Marshal(sig.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	rationale, err := json.Marshal(sig.Rationale)
	if err != nil {
		return fmt.Errorf("marshal rationale: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO signals (
			id, symbol, direction, entry, current_price, stop, tp1, tp2, tp3,
			risk_reward, confidence, tier, trade_live, position_pct, snapshot,
			rationale, created_at, expires_at, outcome
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sig.ID, sig.Symbol, string(sig.Direction), sig.Entry, sig.CurrentPrice,
		sig.Stop, sig.TP1, sig.TP2, sig.TP3, sig.RiskReward, sig.Confidence,
		string(sig.Tier), boolToInt(sig.TradeLive), sig.PositionPct,
		string(snapshot), string(rationale),
		sig.CreatedAt.Unix(), sig.ExpiresAt.Unix(), string(model.OutcomePending))
	if err != nil {
		return fmt.Errorf("sqlite insert signal: %w", err)
	}
	return nil
}

// GetPending returns every signal still awaiting an outcome, oldest first.
func (s *Store) GetPending(ctx context.Context) ([]model.Signal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+signalColumns+`
		FROM signals
		WHERE outcome = ?
		ORDER BY created_at ASC`, string(model.OutcomePending))
	if err != nil {
		return nil, fmt.Errorf("sqlite query pending: %w", err)
	}
	defer rows.Close()
	return scanSignals(rows)
}

// Resolve sets the terminal outcome for a pending signal. The UPDATE is
// constrained to outcome='PENDING', so resolving an already-resolved signal
// matches zero rows and is a no-op.
func (s *Store) Resolve(ctx context.Context, id string, outcome model.Outcome, price float64, at time.Time, pips float64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE signals
		SET outcome = ?, outcome_price = ?, outcome_time = ?, pips = ?
		WHERE id = ? AND outcome = ?`,
		string(outcome), price, at.Unix(), pips, id, string(model.OutcomePending))
	if err != nil {
		return fmt.Errorf("sqlite resolve signal: %w", err)
	}
	return nil
}

// ListCompleted returns all non-pending signals for a symbol, oldest first.
func (s *Store) ListCompleted(ctx context.Context, symbol string) ([]model.Signal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+signalColumns+`
		FROM signals
		WHERE symbol = ? AND outcome != ?
		ORDER BY created_at ASC`, symbol, string(model.OutcomePending))
	if err != nil {
		return nil, fmt.Errorf("sqlite query completed: %w", err)
	}
	defer rows.Close()
	return scanSignals(rows)
}

func scanSignals(rows *sql.Rows) ([]model.Signal, error) {
	var out []model.Signal
	for rows.Next() {
		var (
			sig                  model.Signal
			direction, tier      string
			outcome              string
			snapshot, rationale  string
			tradeLive            int
			createdAt, expiresAt int64
			outcomePrice, pips   sql.NullFloat64
			outcomeTime          sql.NullInt64
		)
		if err := rows.Scan(
			&sig.ID, &sig.Symbol, &direction, &sig.Entry, &sig.CurrentPrice,
			&sig.Stop, &sig.TP1, &sig.TP2, &sig.TP3, &sig.RiskReward,
			&sig.Confidence, &tier, &tradeLive, &sig.PositionPct,
			&snapshot, &rationale, &createdAt, &expiresAt,
			&outcome, &outcomePrice, &outcomeTime, &pips,
		); err != nil {
			return nil, fmt.Errorf("sqlite scan signal: %w", err)
		}
		sig.Direction = model.Direction(direction)
		sig.Tier = model.Tier(tier)
		sig.Outcome = model.Outcome(outcome)
		sig.TradeLive = tradeLive != 0
		sig.CreatedAt = time.Unix(createdAt, 0).UTC()
		sig.ExpiresAt = time.Unix(expiresAt, 0).UTC()
		if outcomePrice.Valid {
			sig.OutcomePrice = outcomePrice.Float64
		}
		if outcomeTime.Valid {
			sig.OutcomeTime = time.Unix(outcomeTime.Int64, 0).UTC()
		}
		if pips.Valid {
			sig.Pips = pips.Float64
		}
		if err := json.Unmarshal([]byte(snapshot), &sig.Snapshot); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot for %s: %w", sig.ID, err)
		}
		if err := json.Unmarshal([]byte(rationale), &sig.Rationale); err != nil {
			return nil, fmt.Errorf("unmarshal rationale for %s: %w", sig.ID, err)
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
