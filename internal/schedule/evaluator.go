package schedule

import (
	"fmt"
	"strings"
	"time"
)

// MonthlyDayPolicy decides what a monthly date does in a month that is too short for it.
type MonthlyDayPolicy int

const (
	// MonthlyClampToLastDay fires a configured date beyond the month length
	// on that month's last day, so dates=[31] fires on Feb 28/29.
	MonthlyClampToLastDay MonthlyDayPolicy = iota
	// MonthlySkipShortMonth does not fire at all in months without the date.
	MonthlySkipShortMonth
)

const DefaultMonthlyDayPolicy = MonthlyClampToLastDay

func ParseMonthlyDayPolicy(raw string) (MonthlyDayPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "clamp":
		return MonthlyClampToLastDay, nil
	case "skip":
		return MonthlySkipShortMonth, nil
	default:
		return DefaultMonthlyDayPolicy, fmt.Errorf("unknown monthly day policy %q", raw)
	}
}

func (p MonthlyDayPolicy) String() string {
	if p == MonthlySkipShortMonth {
		return "skip"
	}
	return "clamp"
}

type Evaluator struct {
	MonthlyDayPolicy MonthlyDayPolicy
}

func NewEvaluator(policy MonthlyDayPolicy) Evaluator {
	return Evaluator{MonthlyDayPolicy: policy}
}

// IsDue reports whether rule fires on the calendar day that t falls on in loc.
// Only the date is evaluated; the rule's time is the coordinator's concern.
func (e Evaluator) IsDue(rule Rule, t time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return e.Matches(rule, time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

// Matches evaluates rule against a calendar date; only its year, month and day are read.
func (e Evaluator) Matches(rule Rule, date time.Time) bool {
	switch r := rule.(type) {
	case Daily:
		return true
	case Weekly:
		wd := date.Weekday()
		for _, d := range r.Days {
			if d == wd {
				return true
			}
		}
		return false
	case Monthly:
		return e.matchesMonthly(r, date)
	default:
		return false
	}
}

func (e Evaluator) matchesMonthly(r Monthly, date time.Time) bool {
	day := date.Day()
	lastDay := daysIn(date.Year(), date.Month())
	for _, d := range r.Dates {
		if d == day {
			return true
		}
		if e.MonthlyDayPolicy == MonthlyClampToLastDay && d > lastDay && day == lastDay {
			return true
		}
	}
	return false
}

// FirstMatch returns the earliest time of day among the rules matching date.
func (e Evaluator) FirstMatch(rules []Rule, date time.Time) (TimeOfDay, bool) {
	var (
		earliest TimeOfDay
		found    bool
	)
	for _, r := range rules {
		if !e.Matches(r, date) {
			continue
		}
		if !found || r.At().Before(earliest) {
			earliest = r.At()
			found = true
		}
	}
	return earliest, found
}

// NextMatch scans forward from date (inclusive) for at most days calendar days
// and returns the first date any rule matches.
func (e Evaluator) NextMatch(rules []Rule, from time.Time, days int) (time.Time, bool) {
	for i := 0; i < days; i++ {
		date := from.AddDate(0, 0, i)
		if _, ok := e.FirstMatch(rules, date); ok {
			return date, true
		}
	}
	return time.Time{}, false
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
