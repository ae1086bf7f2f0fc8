package dispatch

import (
	"fmt"
	"strings"
	"time"
)

// dateKeyLayout matches the backend's stored exam_date representation:
// midnight UTC with millisecond precision.
const dateKeyLayout = "2006-01-02T15:04:05.000Z"

// importLayouts are the raw EXAM column formats accepted by the import
// pipeline, tried in order.
var importLayouts = []string{
	"1/2/2006", // M/D/YYYY, the common spreadsheet export format
	"2006-01-02",
	"02-01-2006",
}

// DateKey normalizes a calendar date to the backend-compatible date string:
// the same calendar day at midnight UTC. Time-of-day and zone of the input
// are irrelevant.
func DateKey(t time.Time) string {
	return Midnight(t).Format(dateKeyLayout)
}

// Midnight returns the input's calendar day at 00:00:00 UTC.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseExamDate parses a raw EXAM cell value into a normalized midnight-UTC
// date. Returns an error when none of the accepted layouts match.
func ParseExamDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("parse exam date: empty value")
	}

	for _, layout := range importLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Midnight(t), nil
		}
	}

	// Already normalized values round-trip unchanged.
	if t, err := time.Parse(dateKeyLayout, s); err == nil {
		return t, nil
	}

	return time.Time{}, fmt.Errorf("parse exam date: unrecognized format %q", raw)
}
