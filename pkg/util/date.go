package util

import (
	"strconv"
	"time"
)

var dateLayouts = []string{time.DateOnly, time.RFC3339Nano, "2006-01-02 15:04:05"}

// ParseTime accepts a calendar date, an RFC3339 timestamp, a "date time" pair or
// unix seconds. Results are in UTC.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).UTC(), true
	}
	return time.Time{}, false
}

// StartOfDay truncates t to midnight UTC of its calendar day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EndOfDay is the last nanosecond of t's UTC day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// AlignDays widens [from, to] to whole UTC days.
func AlignDays(from, to time.Time) (time.Time, time.Time) {
	return StartOfDay(from), EndOfDay(to)
}
