package util

import (
	"strconv"
	"time"
)

// DateLayout is the calendar date format used for persisted keys.
const DateLayout = "2006-01-02"

// ParseTime tries RFC3339, RFC3339Nano, a bare date, and unix seconds.
// Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// StartOfDayUTC truncates t to midnight UTC of its UTC calendar day.
func StartOfDayUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders the UTC calendar day of t.
func FormatDate(t time.Time) string { return t.UTC().Format(DateLayout) }

// ParseDate parses a calendar day as UTC midnight.
func ParseDate(s string) (time.Time, error) { return time.ParseInLocation(DateLayout, s, time.UTC) }

// RetentionCutoff returns the first day that survives a retention run:
// today minus daysToKeep. daysToKeep <= 0 yields tomorrow, so every stored
// day, today included, is older than the cutoff.
func RetentionCutoff(now time.Time, daysToKeep int) time.Time {
	today := StartOfDayUTC(now)
	if daysToKeep <= 0 {
		return today.AddDate(0, 0, 1)
	}
	return today.AddDate(0, 0, -daysToKeep)
}
