package loandash

import (
	"strings"
	"time"
)

// DefaultMonthLabel returns the label of the month containing now: the
// abbreviated month name followed by the two-digit year, lower-cased ("feb26").
func DefaultMonthLabel(now time.Time) string {
	return strings.ToLower(now.Format("Jan06"))
}

// MonthLabel normalizes a label typed by the user. An empty result means the
// default label should be used.
func MonthLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
