package model

import "time"

// RecommendationStatus tracks the approval lifecycle of a backtest
// recommendation. Transitions are driven by an external approval action.
type RecommendationStatus string

const (
	RecommendationPending    RecommendationStatus = "pending"
	RecommendationApproved   RecommendationStatus = "approved"
	RecommendationRejected   RecommendationStatus = "rejected"
	RecommendationRolledBack RecommendationStatus = "rolled_back"
)

// BacktestRecommendation is a proposed parameter change for one symbol,
// produced by replaying historical signals under a candidate grid.
type BacktestRecommendation struct {
	ID               int64                `json:"id"`
	Symbol           string               `json:"symbol"`
	Current          StrategyParameters   `json:"current"`
	Proposed         StrategyParameters   `json:"proposed"`
	SampleSize       int                  `json:"sample_size"`        // matching replays the win rate came from
	BaselineWinRate  float64              `json:"baseline_win_rate"`  // realized, 0..1
	ProjectedWinRate float64              `json:"projected_win_rate"` // replayed, 0..1
	Improvement      float64              `json:"improvement"`        // percentage points
	Status           RecommendationStatus `json:"status"`
	CreatedAt        time.Time            `json:"created_at"`
}
