package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestEvaluator_Matches(t *testing.T) {
	nine := TimeOfDay{Hour: 9}
	type args struct {
		rule Rule
		date time.Time
	}
	tests := []struct {
		name   string
		policy MonthlyDayPolicy
		args   args
		want   bool
	}{
		{
			name: "daily fires on any date",
			args: args{rule: Daily{Time: nine}, date: date(2025, 1, 5)},
			want: true,
		},
		{
			name: "weekly monday fires on a monday",
			args: args{rule: Weekly{Time: nine, Days: []time.Weekday{time.Monday}}, date: date(2025, 1, 6)},
			want: true,
		},
		{
			name: "weekly monday does not fire on a sunday",
			args: args{rule: Weekly{Time: nine, Days: []time.Weekday{time.Monday}}, date: date(2025, 1, 5)},
			want: false,
		},
		{
			name: "weekly with several days",
			args: args{rule: Weekly{Time: nine, Days: []time.Weekday{time.Tuesday, time.Sunday}}, date: date(2025, 1, 5)},
			want: true,
		},
		{
			name: "monthly exact date",
			args: args{rule: Monthly{Time: nine, Dates: []int{15}}, date: date(2025, 3, 15)},
			want: true,
		},
		{
			name: "monthly other date",
			args: args{rule: Monthly{Time: nine, Dates: []int{15}}, date: date(2025, 3, 16)},
			want: false,
		},
		{
			name:   "monthly 31 clamps to february 28",
			policy: MonthlyClampToLastDay,
			args:   args{rule: Monthly{Time: nine, Dates: []int{31}}, date: date(2025, 2, 28)},
			want:   true,
		},
		{
			name:   "monthly 31 clamps to february 29 in a leap year",
			policy: MonthlyClampToLastDay,
			args:   args{rule: Monthly{Time: nine, Dates: []int{31}}, date: date(2024, 2, 29)},
			want:   true,
		},
		{
			name:   "monthly 31 does not fire on february 28 in a leap year",
			policy: MonthlyClampToLastDay,
			args:   args{rule: Monthly{Time: nine, Dates: []int{31}}, date: date(2024, 2, 28)},
			want:   false,
		},
		{
			name:   "monthly 31 clamps to april 30",
			policy: MonthlyClampToLastDay,
			args:   args{rule: Monthly{Time: nine, Dates: []int{31}}, date: date(2025, 4, 30)},
			want:   true,
		},
		{
			name:   "skip policy ignores short months",
			policy: MonthlySkipShortMonth,
			args:   args{rule: Monthly{Time: nine, Dates: []int{31}}, date: date(2025, 2, 28)},
			want:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEvaluator(tt.policy)
			assert.Equal(t, tt.want, e.Matches(tt.args.rule, tt.args.date))
		})
	}
}

func TestEvaluator_MonthlyClampFiresOncePerMonth(t *testing.T) {
	e := NewEvaluator(MonthlyClampToLastDay)
	rule := Monthly{Time: TimeOfDay{Hour: 8}, Dates: []int{29, 30, 31}}

	fired := 0
	for d := date(2025, 2, 1); d.Month() == time.February; d = d.AddDate(0, 0, 1) {
		if e.Matches(rule, d) {
			fired++
			assert.Equal(t, 28, d.Day())
		}
	}
	assert.Equal(t, 1, fired)
}

func TestEvaluator_IsDueUsesTimezone(t *testing.T) {
	e := NewEvaluator(DefaultMonthlyDayPolicy)
	jakarta, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)

	rule := Weekly{Time: TimeOfDay{Hour: 9}, Days: []time.Weekday{time.Monday}}
	// Sunday 2025-01-05 20:00 UTC is already Monday in Jakarta.
	instant := time.Date(2025, 1, 5, 20, 0, 0, 0, time.UTC)

	assert.True(t, e.IsDue(rule, instant, jakarta))
	assert.False(t, e.IsDue(rule, instant, time.UTC))
}

func TestEvaluator_FirstMatchAndNextMatch(t *testing.T) {
	e := NewEvaluator(DefaultMonthlyDayPolicy)
	rules := []Rule{
		Weekly{Time: TimeOfDay{Hour: 17}, Days: []time.Weekday{time.Monday}},
		Daily{Time: TimeOfDay{Hour: 7, Minute: 30}},
	}

	at, ok := e.FirstMatch(rules, date(2025, 1, 6))
	require.True(t, ok)
	assert.Equal(t, TimeOfDay{Hour: 7, Minute: 30}, at)

	weekly := []Rule{rules[0]}
	next, ok := e.NextMatch(weekly, date(2025, 1, 1), 7)
	require.True(t, ok)
	assert.Equal(t, date(2025, 1, 6), next)

	_, ok = e.NextMatch(weekly, date(2025, 1, 1), 3)
	assert.False(t, ok)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		frequency string
		at        string
		weekdays  []string
		monthDays []int
		want      Rule
		wantErr   error
	}{
		{
			name:      "daily",
			frequency: "daily",
			at:        "09:00",
			want:      Daily{Time: TimeOfDay{Hour: 9}},
		},
		{
			name:      "weekly dedupes and sorts days",
			frequency: "Weekly",
			at:        "18:45",
			weekdays:  []string{"fri", "Monday", "mon"},
			want:      Weekly{Time: TimeOfDay{Hour: 18, Minute: 45}, Days: []time.Weekday{time.Monday, time.Friday}},
		},
		{
			name:      "monthly",
			frequency: "monthly",
			at:        "00:00",
			monthDays: []int{31, 1},
			want:      Monthly{Time: TimeOfDay{}, Dates: []int{1, 31}},
		},
		{
			name:      "weekly without days",
			frequency: "weekly",
			at:        "09:00",
			wantErr:   ErrEmptyWeekdays,
		},
		{
			name:      "monthly without dates",
			frequency: "monthly",
			at:        "09:00",
			wantErr:   ErrEmptyMonthDays,
		},
		{
			name:      "monthly date out of range",
			frequency: "monthly",
			at:        "09:00",
			monthDays: []int{32},
			wantErr:   ErrInvalidMonthDay,
		},
		{
			name:      "bad weekday",
			frequency: "weekly",
			at:        "09:00",
			weekdays:  []string{"funday"},
			wantErr:   ErrInvalidWeekday,
		},
		{
			name:      "time out of range",
			frequency: "daily",
			at:        "24:00",
			wantErr:   ErrInvalidTime,
		},
		{
			name:      "time without minutes",
			frequency: "daily",
			at:        "9",
			wantErr:   ErrInvalidTime,
		},
		{
			name:      "unknown frequency",
			frequency: "yearly",
			at:        "09:00",
			wantErr:   ErrInvalidFrequency,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.frequency, tt.at, tt.weekdays, tt.monthDays)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "daily 09:00", Describe(Daily{Time: TimeOfDay{Hour: 9}}))
	assert.Equal(t, "weekly mon,thu 07:05", Describe(Weekly{Time: TimeOfDay{Hour: 7, Minute: 5}, Days: []time.Weekday{time.Monday, time.Thursday}}))
	assert.Equal(t, "monthly 1,31 23:59", Describe(Monthly{Time: TimeOfDay{Hour: 23, Minute: 59}, Dates: []int{1, 31}}))
}

func TestParseMonthlyDayPolicy(t *testing.T) {
	p, err := ParseMonthlyDayPolicy("")
	require.NoError(t, err)
	assert.Equal(t, MonthlyClampToLastDay, p)

	p, err = ParseMonthlyDayPolicy("skip")
	require.NoError(t, err)
	assert.Equal(t, MonthlySkipShortMonth, p)

	_, err = ParseMonthlyDayPolicy("round")
	assert.Error(t, err)
}
