// Package msk centralises Moscow-timezone day arithmetic and the timestamp
// format the Seller API expects. The marketplace counts "days" in Moscow time
// regardless of the warehouse timezone, so all window math goes through here.
package msk

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is re-exported so engine packages don't import clockwork directly.
type Clock = clockwork.Clock

// NewRealClock returns the wall clock.
func NewRealClock() Clock { return clockwork.NewRealClock() }

var location = loadLocation()

func loadLocation() *time.Location {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		// Containers without tzdata still need correct day boundaries.
		return time.FixedZone("MSK", 3*60*60)
	}
	return loc
}

// Location returns the Moscow timezone.
func Location() *time.Location { return location }

// StartOfDay returns midnight of t's Moscow day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.In(location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, location)
}

// EndOfDay returns the last second of t's Moscow day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Second)
}

// DayStartIn returns Moscow midnight n days after now.
func DayStartIn(now time.Time, n int) time.Time {
	return StartOfDay(now.In(location).AddDate(0, 0, n))
}

// FormatISO renders t the way the Seller API wants timestamps: UTC,
// second precision, trailing Z, no milliseconds.
func FormatISO(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z")
}

// SearchWindow is the absolute slot-search interval for a task.
type SearchWindow struct {
	From time.Time
	To   time.Time
}

// Valid reports whether the window still contains any time.
func (w SearchWindow) Valid() bool { return !w.From.After(w.To) }

// ComputeSearchWindow builds the slot-search interval: from the start of the
// Moscow day the seller is ready to ship, to the end of the Moscow day of
// either the deadline or the horizon cap, whichever is sooner.
func ComputeSearchWindow(now, deadline time.Time, readyInDays, maxDays int) SearchWindow {
	from := DayStartIn(now, readyInDays)
	horizon := now.AddDate(0, 0, maxDays)
	to := deadline
	if to.IsZero() || horizon.Before(to) {
		to = horizon
	}
	return SearchWindow{From: from, To: EndOfDay(to)}
}

// ReadinessCutoff is the earliest acceptable slot start at a given instant.
// It moves forward with the clock and must be re-evaluated on every poll.
func ReadinessCutoff(now time.Time, readyInDays int) time.Time {
	return DayStartIn(now, readyInDays)
}
