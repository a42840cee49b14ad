package utils

import (
	"time"
)

// Clock returns the current time. Components take one so tests can pin "now".
type Clock func() time.Time

// SystemClock is the wall clock.
func SystemClock() time.Time {
	return time.Now()
}

// StartOfDay returns midnight UTC of the day containing t.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysAgo returns midnight UTC n days before the day containing t.
func DaysAgo(t time.Time, n int) time.Time {
	return StartOfDay(t).AddDate(0, 0, -n)
}

// WithinLookback reports whether ts falls within the trailing window of
// the given number of days ending at now. Timestamps are compared exactly,
// not by day.
func WithinLookback(ts, now time.Time, days int) bool {
	if days <= 0 {
		return true
	}
	return !ts.Before(now.Add(-time.Duration(days) * 24 * time.Hour))
}

// FormatDate formats t as an ISO-8601 day.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
