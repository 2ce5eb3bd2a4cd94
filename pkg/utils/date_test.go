package utils

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendarDate(t *testing.T) {
	jakarta := MustLoadLocation("Asia/Jakarta")

	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{name: "late UTC evening is the next day in Jakarta", in: time.Date(2025, 1, 5, 18, 30, 0, 0, time.UTC), want: "2025-01-06"},
		{name: "early UTC morning is the same day", in: time.Date(2025, 1, 5, 1, 0, 0, 0, time.UTC), want: "2025-01-05"},
		{name: "year boundary", in: time.Date(2024, 12, 31, 17, 0, 0, 0, time.UTC), want: "2025-01-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalendarDate(tt.in, jakarta)
			assert.Equal(t, tt.want, got.Format(time.DateOnly))
			assert.Equal(t, time.UTC, got.Location())
			assert.Zero(t, got.Hour())
		})
	}
}

func TestParseAsOf(t *testing.T) {
	jakarta := MustLoadLocation("Asia/Jakarta")

	tests := []struct {
		raw     string
		want    time.Time
		wantErr bool
	}{
		{raw: "2025-01-06T09:00:00Z", want: time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)},
		{raw: "2025-01-06T09:00", want: time.Date(2025, 1, 6, 9, 0, 0, 0, jakarta)},
		{raw: " 2025-01-06 09:15 ", want: time.Date(2025, 1, 6, 9, 15, 0, 0, jakarta)},
		{raw: "2025-01-06", want: time.Date(2025, 1, 6, 0, 0, 0, 0, jakarta)},
		{raw: "", wantErr: true},
		{raw: "06/01/2025", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseAsOf(tt.raw, jakarta)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{in: "short", max: 10, want: "short"},
		{in: "abcdefghij", max: 6, want: "abc..."},
		{in: "héllo wörld", max: 5, want: "hé..."},
		{in: "abcdef", max: 2, want: "ab"},
		{in: "abc", max: 0, want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Truncate(tt.in, tt.max))
	}
}
