package notification

import (
	"fmt"
	"strings"

	"fxsignals/internal/model"
)

// SignalAlert formats a freshly created signal as an alert. HIGH-tier
// signals escalate to WARNING so live-tradeable calls stand out in noisy
// channels.
func SignalAlert(sig *model.Signal) Alert {
	level := AlertInfo
	if sig.Tier == model.TierHigh {
		level = AlertWarning
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s @ %.5f\n", sig.Direction, sig.Symbol, sig.Entry)
	fmt.Fprintf(&b, "Stop %.5f | TP1 %.5f | TP2 %.5f | TP3 %.5f\n", sig.Stop, sig.TP1, sig.TP2, sig.TP3)
	fmt.Fprintf(&b, "Confidence %d/%d (%s)", sig.Confidence, model.ConfidenceMax, sig.Tier)
	if sig.TradeLive {
		fmt.Fprintf(&b, " — live, %.1f%% position", sig.PositionPct)
	} else {
		b.WriteString(" — paper only")
	}
	if len(sig.Rationale) > 0 {
		b.WriteString("\n" + strings.Join(sig.Rationale, "; "))
	}

	return Alert{
		Level:   level,
		Title:   fmt.Sprintf("New %s signal: %s %s", sig.Tier, sig.Direction, sig.Symbol),
		Message: b.String(),
	}
}

// OutcomeAlert formats a signal resolution as an alert. Stop-outs on
// live-tradeable signals escalate to WARNING.
func OutcomeAlert(sig *model.Signal, outcome model.Outcome, price, pips float64) Alert {
	level := AlertInfo
	if outcome == model.OutcomeStopHit && sig.TradeLive {
		level = AlertWarning
	}
	return Alert{
		Level: level,
		Title: fmt.Sprintf("Signal %s: %s %s", outcome, sig.Direction, sig.Symbol),
		Message: fmt.Sprintf("%s %s entered %.5f, closed %.5f (%+.1f pips)",
			sig.Direction, sig.Symbol, sig.Entry, price, pips),
	}
}
