// Package markethours tracks the forex trading week and the fixed
// high-impact news window used by the strategy engine's scoring.
package markethours

import "time"

// The forex market runs continuously from Sunday 22:00 UTC (Sydney open)
// to Friday 22:00 UTC (New York close).
const (
	WeekOpenHourUTC  = 22 // Sunday
	WeekCloseHourUTC = 22 // Friday
)

// News blackout: the hours of day (UTC) around major scheduled releases
// (US session data drops) during which fresh signals score lower.
const (
	NewsWindowStartHourUTC = 12
	NewsWindowEndHourUTC   = 15 // exclusive
)

// IsMarketOpen returns true if t falls within the forex trading week
// (Sun 22:00 UTC – Fri 22:00 UTC).
func IsMarketOpen(t time.Time) bool {
	u := t.UTC()
	switch u.Weekday() {
	case time.Saturday:
		return false
	case time.Sunday:
		return u.Hour() >= WeekOpenHourUTC
	case time.Friday:
		return u.Hour() < WeekCloseHourUTC
	default:
		return true
	}
}

// InNewsWindow returns true if t falls inside the scheduled-news blackout
// hours on a weekday. Signals generated outside this window earn a small
// confidence bonus.
func InNewsWindow(t time.Time) bool {
	u := t.UTC()
	wd := u.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return u.Hour() >= NewsWindowStartHourUTC && u.Hour() < NewsWindowEndHourUTC
}

// NextOpen returns the next market open time. If the market is already open
// at t, returns t itself.
func NextOpen(t time.Time) time.Time {
	u := t.UTC()
	if IsMarketOpen(u) {
		return u
	}
	// Walk forward to Sunday 22:00 UTC.
	d := time.Date(u.Year(), u.Month(), u.Day(), WeekOpenHourUTC, 0, 0, 0, time.UTC)
	for d.Weekday() != time.Sunday || !d.After(u) {
		d = d.AddDate(0, 0, 1)
		d = time.Date(d.Year(), d.Month(), d.Day(), WeekOpenHourUTC, 0, 0, 0, time.UTC)
	}
	return d
}

// StatusString returns a human-readable market status for t.
func StatusString(t time.Time) string {
	if IsMarketOpen(t) {
		if InNewsWindow(t) {
			return "open (news window)"
		}
		return "open"
	}
	return "closed (weekend)"
}
