package utils

import (
	"fmt"
	"strings"
	"time"
)

// Timestamp layouts accepted on entry/exit fields. Tried in order; the
// first match wins. The bare clock layout ("03:04 PM") is handled
// separately because it needs today's date filled in.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 03:04 PM",
	"02-01-2006 15:04:05",
	"01/02/2006 15:04:05",
}

const clockLayout = "03:04 PM"

// ParseTimestamp parses an operator-supplied timestamp in any of the
// accepted layouts and returns it in UTC. A bare clock time such as
// "09:30 AM" is interpreted as that time on the current date. Layouts
// without a zone are taken as UTC.
func ParseTimestamp(value string) (time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	if t, err := time.Parse(clockLayout, strings.ToUpper(v)); err == nil {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(),
			t.Hour(), t.Minute(), 0, 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// ParseDate parses a calendar day ("2006-01-02") and returns midnight UTC
// of that day. Report endpoints use it for range boundaries.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized date %q", value)
	}
	return t.UTC(), nil
}
