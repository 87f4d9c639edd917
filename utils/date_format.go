package utils

import (
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// FormatLongDate renders t like "October 19, 2026". Zero times render as "".
func FormatLongDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("January 2, 2006")
}

// FormatLongDatePtr is FormatLongDate for optional dates, with a fallback label.
func FormatLongDatePtr(t *time.Time, fallback string) string {
	if t == nil || t.IsZero() {
		return fallback
	}
	return FormatLongDate(*t)
}

// ParseDate parses a YYYY-MM-DD date, also accepting a full RFC 3339 timestamp.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(DateLayout, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// YearBounds returns the half-open [start, end) interval covering year in UTC.
func YearBounds(year int) (time.Time, time.Time) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(1, 0, 0)
}
