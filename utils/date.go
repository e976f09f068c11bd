package utils

import (
	"strings"
	"time"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"2006/01",
	"01/02/2006",
	"02/01/2006",
	"01/2006",
}

// ParseDate tries the date layouts found in CRM exports. Returns (t, true)
// if any worked. Results are in UTC. Slash dates are read month first and
// fall back to day first when the month would be out of range.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// MonthLabel formats t as YYYY-MM.
func MonthLabel(t time.Time) string {
	return t.Format("2006-01")
}
