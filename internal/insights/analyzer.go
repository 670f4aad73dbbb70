// Package insights derives per-symbol performance aggregates from completed
// signal history: overall and per-direction win rates, and an advisory weight
// for each tracked indicator condition.
//
// Weights are advisory only. The Analyzer satisfies model.WeightProvider so
// the strategy engine can consult them, but they are not fed into live
// confidence scoring.
package insights

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"fxsignals/internal/model"
)

// MinCompletedSignals is the history floor below which a symbol gets the
// fixed default weights instead of computed ones.
const MinCompletedSignals = 30

// weightCap bounds any computed condition weight.
const weightCap = 25

// Analyzer computes and caches SymbolInsights. Results are recomputed only
// on an explicit Analyze call, never implicitly per signal.
type Analyzer struct {
	store model.SignalStore
	now   func() time.Time

	mu    sync.RWMutex
	cache map[string]*model.SymbolInsights
}

// Option customizes an Analyzer.
type Option func(*Analyzer)

// WithClock injects a deterministic time source (tests).
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// New creates an Analyzer reading completed signals from store.
func New(store model.SignalStore, opts ...Option) *Analyzer {
	a := &Analyzer{
		store: store,
		now:   time.Now,
		cache: make(map[string]*model.SymbolInsights),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Get returns the cached insights for symbol, computing them on first use.
func (a *Analyzer) Get(ctx context.Context, symbol string) (*model.SymbolInsights, error) {
	a.mu.RLock()
	cached, ok := a.cache[symbol]
	a.mu.RUnlock()
	if ok {
		return cached, nil
	}
	return a.Analyze(ctx, symbol)
}

// Analyze recomputes insights for symbol from stored history and refreshes
// the cache.
func (a *Analyzer) Analyze(ctx context.Context, symbol string) (*model.SymbolInsights, error) {
	completed, err := a.store.ListCompleted(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("list completed for %s: %w", symbol, err)
	}

	ins := a.compute(symbol, completed)

	a.mu.Lock()
	a.cache[symbol] = ins
	a.mu.Unlock()

	log.Printf("[insights] %s: %d completed, win rate %.1f%%, enough data=%v",
		symbol, ins.Completed, ins.WinRate*100, ins.HasEnoughData)
	return ins, nil
}

// Weights implements model.WeightProvider using cached insights.
func (a *Analyzer) Weights(ctx context.Context, symbol string) (map[model.Condition]int, error) {
	ins, err := a.Get(ctx, symbol)
	if err != nil {
		return nil, err
	}
	out := make(map[model.Condition]int, len(ins.Conditions))
	for cond, stat := range ins.Conditions {
		out[cond] = stat.Weight
	}
	return out, nil
}

func (a *Analyzer) compute(symbol string, completed []model.Signal) *model.SymbolInsights {
	ins := &model.SymbolInsights{
		Symbol:     symbol,
		Completed:  len(completed),
		Conditions: make(map[model.Condition]model.ConditionStat, len(model.AllConditions)),
		ComputedAt: a.now().UTC(),
	}

	if len(completed) < MinCompletedSignals {
		for _, cond := range model.AllConditions {
			ins.Conditions[cond] = model.ConditionStat{
				Weight: model.DefaultConditionWeights[cond],
			}
		}
		return ins
	}
	ins.HasEnoughData = true

	var wins, longs, longWins, shorts, shortWins int
	bucketSamples := make(map[model.Condition]int)
	bucketWins := make(map[model.Condition]int)

	for i := range completed {
		sig := &completed[i]
		win := sig.Outcome.IsWin()
		if win {
			wins++
		}
		if sig.Direction == model.DirectionLong {
			longs++
			if win {
				longWins++
			}
		} else {
			shorts++
			if win {
				shortWins++
			}
		}
		for _, cond := range conditionsOf(sig) {
			bucketSamples[cond]++
			if win {
				bucketWins[cond]++
			}
		}
	}

	ins.WinRate = rate(wins, len(completed))
	ins.LongWinRate = rate(longWins, longs)
	ins.ShortWinRate = rate(shortWins, shorts)

	for _, cond := range model.AllConditions {
		samples := bucketSamples[cond]
		stat := model.ConditionStat{Samples: samples}
		if samples == 0 {
			// Never seen for this symbol: keep the default weight.
			stat.Weight = model.DefaultConditionWeights[cond]
		} else {
			stat.WinRate = rate(bucketWins[cond], samples)
			stat.Weight = weightFor(cond, stat.WinRate)
		}
		ins.Conditions[cond] = stat
	}
	return ins
}

// conditionsOf returns every condition bucket the signal's recorded
// indicator snapshot falls into.
func conditionsOf(sig *model.Signal) []model.Condition {
	rsi := sig.Snapshot.RSI
	adx := sig.Snapshot.ADX

	var out []model.Condition
	if sig.Direction == model.DirectionLong {
		if rsi >= 40 && rsi <= 70 {
			out = append(out, model.ConditionRSIFavorable)
		}
	} else {
		if rsi >= 30 && rsi <= 60 {
			out = append(out, model.ConditionRSIFavorable)
		}
	}
	if rsi > 70 {
		out = append(out, model.ConditionRSIOverbought)
	}
	if rsi < 30 {
		out = append(out, model.ConditionRSIOversold)
	}
	if adx > 25 {
		out = append(out, model.ConditionADXStrong)
	}
	if adx < 20 {
		out = append(out, model.ConditionADXWeak)
	}
	return out
}

// weightFor maps a bucket win rate to an advisory weight on the fixed
// non-linear schedule, anchored on the condition's default weight.
func weightFor(cond model.Condition, winRate float64) int {
	base := model.DefaultConditionWeights[cond]
	var w int
	switch {
	case winRate >= 0.80:
		w = base + 10
	case winRate >= 0.60:
		w = base + 5
	case winRate >= 0.40:
		w = base
	default:
		w = 0
	}
	if w > weightCap {
		w = weightCap
	}
	return w
}

func rate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}
