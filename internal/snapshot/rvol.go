package snapshot

import (
	"math"
	"time"

	"github.com/signalscan/scanner/internal/session"
)

// RVOL is current volume over a time-of-day-adjusted expected volume.
// Early in the session the full daily average would dwarf any real volume,
// so the average is scaled by the fraction of the trading day elapsed,
// floored so premarket prints still produce a finite ratio.
func RVOL(volume, avgVolume int64, now time.Time) float64 {
	if avgVolume <= 0 {
		return 0
	}

	expected := float64(avgVolume) * sessionFraction(now)
	if expected <= 0 {
		return 0
	}

	return math.Round(float64(volume)/expected*100) / 100
}

// sessionFraction returns the elapsed fraction of the 09:30-16:00 ET
// session, floored at 0.05 so premarket and the opening minutes do not
// divide by near-zero.
func sessionFraction(now time.Time) float64 {
	et := now.In(session.Eastern)
	open := time.Date(et.Year(), et.Month(), et.Day(), 9, 30, 0, 0, session.Eastern)
	close := time.Date(et.Year(), et.Month(), et.Day(), 16, 0, 0, 0, session.Eastern)

	switch {
	case et.Before(open):
		return 0.05
	case !et.Before(close):
		return 1.0
	}

	frac := et.Sub(open).Minutes() / close.Sub(open).Minutes()
	if frac < 0.05 {
		frac = 0.05
	}
	return frac
}
