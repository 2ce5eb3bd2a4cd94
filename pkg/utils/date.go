package utils

import (
	"fmt"
	"strings"
	"time"
)

var asOfLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	time.DateOnly,
}

// MustLoadLocation panics on an unknown zone; config.Load validates the name first.
func MustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("failed to load location %q: %v", name, err))
	}
	return loc
}

func TimeNowIn(loc *time.Location) time.Time {
	return time.Now().In(loc)
}

// CalendarDate returns the date t falls on in loc, as midnight UTC.
// Calendar dates are stored and compared in this form everywhere.
func CalendarDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseAsOf parses a run instant. Values without an offset are read in loc.
func ParseAsOf(raw string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("as-of is empty")
	}
	for _, layout := range asOfLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid as-of %q: expected RFC3339 or YYYY-MM-DDTHH:MM", raw)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(raw string) (time.Time, error) {
	return time.Parse(time.DateOnly, strings.TrimSpace(raw))
}
