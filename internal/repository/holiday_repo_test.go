package repository

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang-scheduled-task/config"
	"golang-scheduled-task/internal/model"
	"golang-scheduled-task/internal/repository/repotest"
	"golang-scheduled-task/pkg/cache"
	"golang-scheduled-task/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCalendar struct {
	calls    atomic.Int32
	mu       sync.Mutex
	holidays map[string]bool
}

func (c *countingCalendar) IsHoliday(_ context.Context, date time.Time) (bool, error) {
	c.calls.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.holidays[date.Format(time.DateOnly)], nil
}

func (c *countingCalendar) add(date time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.holidays[date.Format(time.DateOnly)] = true
}

func TestHolidayRepository(t *testing.T) {
	repo := NewHolidayRepository(repotest.NewDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &model.Holiday{Date: day(1), Name: "New Year"}))
	require.NoError(t, repo.Upsert(ctx, &model.Holiday{Date: day(27), Name: "Isra Mi'raj"}))
	require.NoError(t, repo.Upsert(ctx, &model.Holiday{Date: day(1), Name: "New Year's Day"}))

	holiday, err := repo.IsHoliday(ctx, day(1))
	require.NoError(t, err)
	assert.True(t, holiday)

	holiday, err = repo.IsHoliday(ctx, day(2))
	require.NoError(t, err)
	assert.False(t, holiday)

	list, err := repo.ListBetween(ctx, day(1), day(31))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "New Year's Day", list[0].Name)
	assert.Equal(t, "2025-01-27", list[1].Date.Format(time.DateOnly))
}

func TestCachedHolidayCalendar(t *testing.T) {
	tests := []struct {
		name     string
		weekends bool
		date     time.Time
		want     bool
	}{
		{name: "listed holiday", date: day(1), want: true},
		{name: "ordinary weekday", date: day(2), want: false},
		{name: "saturday counts when weekends are holidays", weekends: true, date: day(4), want: true},
		{name: "saturday is a business day otherwise", date: day(4), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &countingCalendar{holidays: map[string]bool{"2025-01-01": true}}
			calendar := NewCachedHolidayCalendar(source, cache.NewCache(time.Minute, time.Minute), time.Minute, time.Minute, tt.weekends, logger.NewNop())

			for i := 0; i < 3; i++ {
				got, err := calendar.IsHoliday(context.Background(), tt.date)
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.LessOrEqual(t, source.calls.Load(), int32(1))
		})
	}
}

func TestCachedHolidayCalendar_NewHolidayIsSeen(t *testing.T) {
	tests := []struct {
		name               string
		negativeExpiration time.Duration
		wait               time.Duration
	}{
		{name: "negatives not cached", negativeExpiration: 0},
		{name: "negative entry expires", negativeExpiration: 20 * time.Millisecond, wait: 50 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &countingCalendar{holidays: map[string]bool{}}
			calendar := NewCachedHolidayCalendar(source, cache.NewCache(time.Hour, time.Minute), 12*time.Hour, tt.negativeExpiration, false, logger.NewNop())
			ctx := context.Background()

			got, err := calendar.IsHoliday(ctx, day(6))
			require.NoError(t, err)
			assert.False(t, got)

			source.add(day(6))
			time.Sleep(tt.wait)

			got, err = calendar.IsHoliday(ctx, day(6))
			require.NoError(t, err)
			assert.True(t, got)

			calls := source.calls.Load()
			got, err = calendar.IsHoliday(ctx, day(6))
			require.NoError(t, err)
			assert.True(t, got)
			assert.Equal(t, calls, source.calls.Load(), "positive answers stay cached")
		})
	}
}

func TestHolidayAPIRepository(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/api/v3/PublicHolidays/2025/ID" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{"date":"2025-01-01","name":"New Year's Day","countryCode":"ID","global":true},
			{"date":"2025-01-29","name":"Chinese New Year","countryCode":"ID","global":true},
			{"date":"2025-03-03","name":"Regional day","countryCode":"ID","global":false}
		]`)
	}))
	defer server.Close()

	cfg := &config.Config{Holiday: config.Holiday{
		BaseURL:             server.URL,
		CountryCode:         "ID",
		Timeout:             5 * time.Second,
		MaxRequestPerMinute: 600,
		CacheExpiration:     time.Hour,
	}}
	repo := NewHolidayAPIRepository(cfg, cache.NewCache(time.Hour, time.Hour), logger.NewNop())
	ctx := context.Background()

	tests := []struct {
		date time.Time
		want bool
	}{
		{date: day(1), want: true},
		{date: day(29), want: true},
		{date: day(2), want: false},
		{date: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), want: false},
	}
	for _, tt := range tests {
		got, err := repo.IsHoliday(ctx, tt.date)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.date.Format(time.DateOnly))
	}

	list, err := repo.ListYear(ctx, 2025)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "New Year's Day", list[0].Name)
	assert.True(t, list[1].Date.Equal(day(29)))
	assert.Equal(t, int32(1), hits.Load(), "a year is fetched once")

	_, err = repo.IsHoliday(ctx, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Error(t, err)
}
