package session

import "time"

// Eastern is the exchange timezone. Falls back to a fixed offset if the
// tzdata lookup fails (stripped containers).
var Eastern = mustLoadEastern()

func mustLoadEastern() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.FixedZone("ET", -5*60*60)
	}
	return loc
}

// Clock abstracts wall-clock time so gate logic stays a pure function of
// its inputs in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always reports the same instant
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// IsPremarket reports whether t falls before the 09:30 ET open
func IsPremarket(t time.Time) bool {
	et := t.In(Eastern)
	return et.Hour() < 9 || (et.Hour() == 9 && et.Minute() < 30)
}

// IsRegularHours reports whether t falls within 09:30-16:00 ET
func IsRegularHours(t time.Time) bool {
	et := t.In(Eastern)
	afterOpen := et.Hour() > 9 || (et.Hour() == 9 && et.Minute() >= 30)
	beforeClose := et.Hour() < 16
	return afterOpen && beforeClose
}

// NextDailyReset returns the next 04:00 ET boundary after t. The daily
// reset clears provider caps, cycle counters and session registries.
func NextDailyReset(t time.Time) time.Time {
	et := t.In(Eastern)
	reset := time.Date(et.Year(), et.Month(), et.Day(), 4, 0, 0, 0, Eastern)
	if !reset.After(et) {
		reset = reset.AddDate(0, 0, 1)
	}
	return reset
}
