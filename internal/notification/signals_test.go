package notification

import (
	"context"
	"strings"
	"testing"

	"fxsignals/internal/model"
)

func highTierSignal() *model.Signal {
	return &model.Signal{
		ID:          "EURUSD-1",
		Symbol:      "EUR/USD",
		Direction:   model.DirectionLong,
		Entry:       1.1000,
		Stop:        1.0950,
		TP1:         1.1075,
		TP2:         1.1125,
		TP3:         1.1200,
		Confidence:  92,
		Tier:        model.TierHigh,
		TradeLive:   true,
		PositionPct: 2.0,
		Rationale:   []string{"HTF uptrend confirmed (+25)"},
	}
}

func TestSignalAlertLevels(t *testing.T) {
	high := SignalAlert(highTierSignal())
	if high.Level != AlertWarning {
		t.Errorf("HIGH tier alert level = %s, want WARNING", high.Level)
	}
	for _, want := range []string{"LONG EUR/USD", "Stop 1.09500", "TP1 1.10750", "92/126", "2.0% position"} {
		if !strings.Contains(high.Message, want) {
			t.Errorf("alert message missing %q:\n%s", want, high.Message)
		}
	}

	med := highTierSignal()
	med.Tier = model.TierMedium
	med.TradeLive = false
	medAlert := SignalAlert(med)
	if medAlert.Level != AlertInfo {
		t.Errorf("MEDIUM tier alert level = %s, want INFO", medAlert.Level)
	}
	if !strings.Contains(medAlert.Message, "paper only") {
		t.Errorf("medium alert should say paper only:\n%s", medAlert.Message)
	}
}

func TestOutcomeAlert(t *testing.T) {
	sig := highTierSignal()
	stop := OutcomeAlert(sig, model.OutcomeStopHit, 1.0950, -50.0)
	if stop.Level != AlertWarning {
		t.Errorf("live stop-out level = %s, want WARNING", stop.Level)
	}
	if !strings.Contains(stop.Message, "-50.0 pips") {
		t.Errorf("stop-out message missing pips:\n%s", stop.Message)
	}

	tp := OutcomeAlert(sig, model.OutcomeTP1Hit, 1.1075, 75.0)
	if tp.Level != AlertInfo {
		t.Errorf("TP hit level = %s, want INFO", tp.Level)
	}
	if !strings.Contains(tp.Title, "TP1_HIT") {
		t.Errorf("title missing outcome: %s", tp.Title)
	}
}

type countingNotifier struct {
	sent []Alert
	err  error
}

func (n *countingNotifier) Send(ctx context.Context, alert Alert) error {
	n.sent = append(n.sent, alert)
	return n.err
}

func TestMultiFansOutPastFailures(t *testing.T) {
	failing := &countingNotifier{err: context.DeadlineExceeded}
	ok := &countingNotifier{}
	m := NewMulti(failing, ok)

	if err := m.Send(context.Background(), Alert{Title: "t"}); err != nil {
		t.Fatalf("multi send: %v", err)
	}
	if len(failing.sent) != 1 || len(ok.sent) != 1 {
		t.Errorf("sends = %d/%d, want 1/1 (failure must not stop fan-out)",
			len(failing.sent), len(ok.sent))
	}
}
