// Package strategy derives trade signals from candle series.
//
// The Engine is deterministic: given the same candle fixtures, parameters,
// and clock, repeated invocation produces an identical signal (same
// confidence, same rationale). All failure modes — short history, undefined
// indicators, a confidence below the gate — yield a nil signal, never an
// error or a partially populated one.
package strategy

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"fxsignals/internal/indicator"
	"fxsignals/internal/markethours"
	"fxsignals/internal/model"
)

const (
	// MinPrimaryCandles is the minimum primary-timeframe history required
	// before any analysis runs.
	MinPrimaryCandles = 200

	rsiPeriod       = 14
	adxPeriod       = 14
	atrPeriod       = 14
	bollingerPeriod = 20
	bollingerMult   = 2.0

	// htfSeparation is the relative fast/slow EMA gap on the higher
	// timeframe that counts as momentum strength.
	htfSeparation = 0.001

	adxStrongTrend = 25.0

	tp1ATRMult = 3.0
	tp2ATRMult = 5.0
	tp3ATRMult = 8.0

	// defaultHighTierRiskPct is the position size assigned to live
	// (HIGH-tier) signals when no override is configured.
	defaultHighTierRiskPct = 2.0

	// snapshotWindow is how many trailing candles of each series are
	// recorded on the signal for backtest replay.
	snapshotWindow = 200
)

// Confidence rule points. The sum of all rules is model.ConfidenceMax.
const (
	ptsTrendAlignment = 25
	ptsEntryTrigger   = 20
	ptsMomentum       = 10
	ptsRSIBand        = 15
	ptsADXStrong      = 15
	ptsBollingerZone  = 8
	ptsCloseConfirmed = 5
	ptsSwingProximity = 15
	ptsBreakoutRetest = 10
	ptsOutsideNews    = 3
)

// trigger names recorded in the rationale.
const (
	triggerCrossover = "crossover"
	triggerPullback  = "pullback"
)

// Engine evaluates candle series against the entry rules and produces
// signal drafts.
type Engine struct {
	highTierRiskPct float64
	weights         model.WeightProvider // advisory only, may be nil

	now   func() time.Time
	newID func(symbol string, ts time.Time) string
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock injects a deterministic time source (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator injects a deterministic signal ID generator (tests).
func WithIDGenerator(gen func(symbol string, ts time.Time) string) Option {
	return func(e *Engine) { e.newID = gen }
}

// WithHighTierRisk sets the position-size percent assigned to HIGH-tier
// signals.
func WithHighTierRisk(pct float64) Option {
	return func(e *Engine) { e.highTierRiskPct = pct }
}

// WithWeightProvider attaches an advisory weight source. Weights are logged
// for observability but are not applied to live confidence scoring.
func WithWeightProvider(wp model.WeightProvider) Option {
	return func(e *Engine) { e.weights = wp }
}

// NewEngine creates a strategy engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		highTierRiskPct: defaultHighTierRiskPct,
		now:             time.Now,
		newID:           generateSignalID,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// generateSignalID builds a unique signal ID from the symbol and creation
// time. Format: "{SYMBOL}-{unixNano}" — lightweight, no UUID dependency.
func generateSignalID(symbol string, ts time.Time) string {
	return fmt.Sprintf("%s-%d", strings.ReplaceAll(symbol, "/", ""), ts.UnixNano())
}

// detection is the outcome of entry-condition evaluation.
type detection struct {
	direction model.Direction
	trigger   string // triggerCrossover or triggerPullback

	fastEMA, slowEMA       float64
	htfFastEMA, htfSlowEMA float64
	bands                  indicator.Bands
}

// detect evaluates the entry conditions only. Returns ok=false when no
// qualifying setup exists. This is the replayable core the backtester runs
// against recorded candle snapshots.
func detect(primary, higher []model.Candle, params model.StrategyParameters) (detection, bool) {
	if len(primary) < MinPrimaryCandles {
		return detection{}, false
	}
	if !params.Valid() {
		params = model.DefaultParameters()
	}

	closes := model.Closes(primary)
	htfCloses := model.Closes(higher)

	fastNow, ok1 := indicator.EMA(closes, params.FastPeriod)
	slowNow, ok2 := indicator.EMA(closes, params.SlowPeriod)
	fastPrev, ok3 := indicator.EMA(closes[:len(closes)-1], params.FastPeriod)
	slowPrev, ok4 := indicator.EMA(closes[:len(closes)-1], params.SlowPeriod)
	htfFast, ok5 := indicator.EMA(htfCloses, params.FastPeriod)
	htfSlow, ok6 := indicator.EMA(htfCloses, params.SlowPeriod)
	bands, ok7 := indicator.Bollinger(closes, bollingerPeriod, bollingerMult)
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6 && ok7) {
		return detection{}, false
	}

	d := detection{
		fastEMA:    fastNow,
		slowEMA:    slowNow,
		htfFastEMA: htfFast,
		htfSlowEMA: htfSlow,
		bands:      bands,
	}

	trendUp := htfFast > htfSlow
	latest := closes[len(closes)-1]

	// Crossover entry: the fast EMA crossing the slow EMA strictly between
	// the prior and current sample, in the higher-timeframe trend direction.
	if trendUp && fastPrev <= slowPrev && fastNow > slowNow {
		d.direction, d.trigger = model.DirectionLong, triggerCrossover
		return d, true
	}
	if !trendUp && fastPrev >= slowPrev && fastNow < slowNow {
		d.direction, d.trigger = model.DirectionShort, triggerCrossover
		return d, true
	}

	// Pullback entry: price already trending with the higher timeframe and
	// the latest close parked between the Bollinger middle and the near band.
	if trendUp && fastNow > slowNow && latest >= bands.Lower && latest <= bands.Middle {
		d.direction, d.trigger = model.DirectionLong, triggerPullback
		return d, true
	}
	if !trendUp && fastNow < slowNow && latest <= bands.Upper && latest >= bands.Middle {
		d.direction, d.trigger = model.DirectionShort, triggerPullback
		return d, true
	}

	return detection{}, false
}

// DetectDirection replays entry detection only, without scoring or ladder
// construction. Used by the parameter backtester.
func DetectDirection(primary, higher []model.Candle, params model.StrategyParameters) (model.Direction, bool) {
	d, ok := detect(primary, higher, params)
	if !ok {
		return "", false
	}
	return d.direction, true
}

// Analyze evaluates the candle series for symbol and returns a fully
// populated signal draft, or nil when no qualifying setup exists.
// The draft is not persisted; outcome starts at PENDING.
func (e *Engine) Analyze(ctx context.Context, symbol string, primary, higher []model.Candle, params model.StrategyParameters) *model.Signal {
	det, ok := detect(primary, higher, params)
	if !ok {
		return nil
	}
	if !params.Valid() {
		params = model.DefaultParameters()
	}

	closes := model.Closes(primary)
	latest := closes[len(closes)-1]

	rsi, ok1 := indicator.RSI(closes, rsiPeriod)
	trend, ok2 := indicator.ADX(primary, adxPeriod)
	atr, ok3 := indicator.ATR(primary, atrPeriod)
	if !(ok1 && ok2 && ok3) || atr == 0 {
		return nil
	}

	now := e.now().UTC()
	confidence, rationale := score(det, latest, rsi, trend.ADX, primary, now)
	if confidence < model.ConfidenceGate {
		return nil
	}

	tier := model.TierMedium
	tradeLive := false
	positionPct := 0.0
	if confidence >= model.ConfidenceHighTier {
		tier = model.TierHigh
		tradeLive = true
		positionPct = e.highTierRiskPct
	}

	entry := latest
	var stop, tp1, tp2, tp3 float64
	if det.direction == model.DirectionLong {
		stop = entry - atr*params.ATRStopMultiplier
		tp1 = entry + atr*tp1ATRMult
		tp2 = entry + atr*tp2ATRMult
		tp3 = entry + atr*tp3ATRMult
	} else {
		stop = entry + atr*params.ATRStopMultiplier
		tp1 = entry - atr*tp1ATRMult
		tp2 = entry - atr*tp2ATRMult
		tp3 = entry - atr*tp3ATRMult
	}

	sig := &model.Signal{
		ID:           e.newID(symbol, now),
		Symbol:       symbol,
		Direction:    det.direction,
		Entry:        entry,
		CurrentPrice: entry,
		Stop:         stop,
		TP1:          tp1,
		TP2:          tp2,
		TP3:          tp3,
		RiskReward:   (atr * tp1ATRMult) / (atr * params.ATRStopMultiplier),
		Confidence:   confidence,
		Tier:         tier,
		TradeLive:    tradeLive,
		PositionPct:  positionPct,
		Snapshot: model.IndicatorSnapshot{
			FastEMA:    det.fastEMA,
			SlowEMA:    det.slowEMA,
			HTFFastEMA: det.htfFastEMA,
			HTFSlowEMA: det.htfSlowEMA,
			RSI:        rsi,
			ADX:        trend.ADX,
			PlusDI:     trend.PlusDI,
			MinusDI:    trend.MinusDI,
			ATR:        atr,
			BBMiddle:   det.bands.Middle,
			BBUpper:    det.bands.Upper,
			BBLower:    det.bands.Lower,
			Primary:    tail(primary, snapshotWindow),
			Higher:     tail(higher, snapshotWindow),
		},
		Rationale: rationale,
		CreatedAt: now,
		ExpiresAt: now.Add(model.SignalTTL),
		Outcome:   model.OutcomePending,
	}

	e.logAdvisoryWeights(ctx, symbol)

	return sig
}

// score applies the additive confidence rules and records which fired.
func score(det detection, latest, rsi, adx float64, primary []model.Candle, now time.Time) (int, []string) {
	points := 0
	var rationale []string
	add := func(pts int, reason string) {
		points += pts
		rationale = append(rationale, fmt.Sprintf("%s (+%d)", reason, pts))
	}

	long := det.direction == model.DirectionLong

	// Higher-timeframe trend alignment with price beyond the HTF fast EMA.
	if (long && latest > det.htfFastEMA) || (!long && latest < det.htfFastEMA) {
		add(ptsTrendAlignment, "higher-timeframe trend aligned, price beyond HTF fast EMA")
	}

	add(ptsEntryTrigger, "entry trigger: "+det.trigger)

	if det.htfSlowEMA != 0 {
		sep := det.htfFastEMA - det.htfSlowEMA
		if sep < 0 {
			sep = -sep
		}
		if sep/det.htfSlowEMA > htfSeparation {
			add(ptsMomentum, "higher-timeframe EMA separation shows momentum")
		}
	}

	if (long && rsi >= 40 && rsi <= 70) || (!long && rsi >= 30 && rsi <= 60) {
		add(ptsRSIBand, fmt.Sprintf("RSI %.1f in favorable band", rsi))
	}

	if adx > adxStrongTrend {
		add(ptsADXStrong, fmt.Sprintf("ADX %.1f signals strong trend", adx))
	}

	if (long && latest >= det.bands.Lower && latest <= det.bands.Middle) ||
		(!long && latest >= det.bands.Middle && latest <= det.bands.Upper) {
		add(ptsBollingerZone, "price in favorable Bollinger region")
	}

	// Detection runs on closed candles only.
	add(ptsCloseConfirmed, "candle close confirmed")

	highs, lows := swingLevels(primary)
	if (long && nearLevel(latest, lows)) || (!long && nearLevel(latest, highs)) {
		add(ptsSwingProximity, "price near swing support/resistance")
	}

	if breakoutRetest(primary, det.direction) {
		add(ptsBreakoutRetest, "breakout-and-retest pattern")
	}

	if !markethours.InNewsWindow(now) {
		add(ptsOutsideNews, "outside news window")
	}

	return points, rationale
}

// logAdvisoryWeights surfaces the adaptive weights for observability.
// They are deliberately not folded into the confidence score.
func (e *Engine) logAdvisoryWeights(ctx context.Context, symbol string) {
	if e.weights == nil {
		return
	}
	weights, err := e.weights.Weights(ctx, symbol)
	if err != nil {
		log.Printf("[strategy] %s: advisory weights unavailable: %v", symbol, err)
		return
	}
	log.Printf("[strategy] %s: advisory weights %v", symbol, weights)
}

func tail(candles []model.Candle, n int) []model.Candle {
	if len(candles) <= n {
		out := make([]model.Candle, len(candles))
		copy(out, candles)
		return out
	}
	out := make([]model.Candle, n)
	copy(out, candles[len(candles)-n:])
	return out
}
