package logs

import (
	"strings"
	"time"
)

// Filter narrows entries. Zero-valued fields do not filter. Dimensions combine
// with AND; Search matches any of its fields.
type Filter struct {
	Type     Type
	Level    Level
	DateFrom time.Time // inclusive calendar day
	DateTo   time.Time // inclusive calendar day
	Search   string
}

func calendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// InRange reports whether t falls on a calendar day between DateFrom and
// DateTo. The day is taken as written, in t's own location.
func (f Filter) InRange(t time.Time) bool {
	day := calendarDay(t)
	if !f.DateFrom.IsZero() && day.Before(calendarDay(f.DateFrom)) {
		return false
	}
	if !f.DateTo.IsZero() && day.After(calendarDay(f.DateTo)) {
		return false
	}
	return true
}

func (f Filter) MatchSearch(fields ...string) bool {
	if f.Search == "" {
		return true
	}
	needle := strings.ToLower(f.Search)
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// Match applies every filter dimension to a file entry. Search looks at the
// raw body, the detected user and the detected ip.
func (f Filter) Match(e Entry) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Level != "" && e.Level != f.Level {
		return false
	}
	if !f.MatchSearch(e.Details, e.User, e.IP) {
		return false
	}
	return f.InRange(e.Date)
}
