// Package schedule holds recurrence rules and the pure evaluation of those
// rules against calendar dates. Nothing in here touches storage or the clock.
package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

var (
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInvalidTime      = errors.New("invalid time of day")
	ErrEmptyWeekdays    = errors.New("weekly schedule requires at least one weekday")
	ErrInvalidWeekday   = errors.New("invalid weekday")
	ErrEmptyMonthDays   = errors.New("monthly schedule requires at least one day of month")
	ErrInvalidMonthDay  = errors.New("day of month must be between 1 and 31")
)

// TimeOfDay is a wall clock time between 00:00 and 23:59.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	s := strings.TrimSpace(raw)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, raw)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, raw)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, raw)
	}
	t := TimeOfDay{Hour: h, Minute: m}
	if !t.Valid() {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, raw)
	}
	return t, nil
}

func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) Before(o TimeOfDay) bool {
	return t.Hour < o.Hour || (t.Hour == o.Hour && t.Minute < o.Minute)
}

// On returns the instant this time of day falls on for a calendar date in loc.
func (t TimeOfDay) On(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, loc)
}

// Rule is one recurrence rule. The concrete types are Daily, Weekly and Monthly.
type Rule interface {
	Frequency() Frequency
	At() TimeOfDay
	isRule()
}

type Daily struct {
	Time TimeOfDay
}

type Weekly struct {
	Time TimeOfDay
	Days []time.Weekday
}

type Monthly struct {
	Time  TimeOfDay
	Dates []int
}

func (Daily) Frequency() Frequency   { return FrequencyDaily }
func (Weekly) Frequency() Frequency  { return FrequencyWeekly }
func (Monthly) Frequency() Frequency { return FrequencyMonthly }

func (r Daily) At() TimeOfDay   { return r.Time }
func (r Weekly) At() TimeOfDay  { return r.Time }
func (r Monthly) At() TimeOfDay { return r.Time }

func (Daily) isRule()   {}
func (Weekly) isRule()  {}
func (Monthly) isRule() {}

func NewDaily(at TimeOfDay) (Daily, error) {
	if !at.Valid() {
		return Daily{}, fmt.Errorf("%w: %s", ErrInvalidTime, at)
	}
	return Daily{Time: at}, nil
}

func NewWeekly(at TimeOfDay, days []time.Weekday) (Weekly, error) {
	if !at.Valid() {
		return Weekly{}, fmt.Errorf("%w: %s", ErrInvalidTime, at)
	}
	if len(days) == 0 {
		return Weekly{}, ErrEmptyWeekdays
	}
	seen := make(map[time.Weekday]bool, len(days))
	uniq := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		if d < time.Sunday || d > time.Saturday {
			return Weekly{}, fmt.Errorf("%w: %d", ErrInvalidWeekday, d)
		}
		if !seen[d] {
			seen[d] = true
			uniq = append(uniq, d)
		}
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })
	return Weekly{Time: at, Days: uniq}, nil
}

func NewMonthly(at TimeOfDay, dates []int) (Monthly, error) {
	if !at.Valid() {
		return Monthly{}, fmt.Errorf("%w: %s", ErrInvalidTime, at)
	}
	if len(dates) == 0 {
		return Monthly{}, ErrEmptyMonthDays
	}
	seen := make(map[int]bool, len(dates))
	uniq := make([]int, 0, len(dates))
	for _, d := range dates {
		if d < 1 || d > 31 {
			return Monthly{}, fmt.Errorf("%w: %d", ErrInvalidMonthDay, d)
		}
		if !seen[d] {
			seen[d] = true
			uniq = append(uniq, d)
		}
	}
	sort.Ints(uniq)
	return Monthly{Time: at, Dates: uniq}, nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

func ParseWeekday(raw string) (time.Weekday, error) {
	d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, raw)
	}
	return d, nil
}

// WeekdayName is the storage form of a weekday.
func WeekdayName(d time.Weekday) string {
	return strings.ToLower(d.String())
}

// Parse builds a Rule from its stored representation.
func Parse(frequency, timeOfDay string, weekdays []string, monthDays []int) (Rule, error) {
	at, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return nil, err
	}

	switch Frequency(strings.ToLower(strings.TrimSpace(frequency))) {
	case FrequencyDaily:
		return NewDaily(at)
	case FrequencyWeekly:
		days := make([]time.Weekday, 0, len(weekdays))
		for _, raw := range weekdays {
			d, err := ParseWeekday(raw)
			if err != nil {
				return nil, err
			}
			days = append(days, d)
		}
		return NewWeekly(at, days)
	case FrequencyMonthly:
		return NewMonthly(at, monthDays)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidFrequency, frequency)
	}
}

// Describe renders a rule for tabular output, e.g. "weekly mon,thu 09:00".
func Describe(r Rule) string {
	switch v := r.(type) {
	case Daily:
		return fmt.Sprintf("daily %s", v.Time)
	case Weekly:
		names := make([]string, 0, len(v.Days))
		for _, d := range v.Days {
			names = append(names, WeekdayName(d)[:3])
		}
		return fmt.Sprintf("weekly %s %s", strings.Join(names, ","), v.Time)
	case Monthly:
		dates := make([]string, 0, len(v.Dates))
		for _, d := range v.Dates {
			dates = append(dates, strconv.Itoa(d))
		}
		return fmt.Sprintf("monthly %s %s", strings.Join(dates, ","), v.Time)
	default:
		return "unknown"
	}
}
