package repository

import (
	"context"
	"fmt"
	"golang-scheduled-task/config"
	"golang-scheduled-task/internal/dto"
	"golang-scheduled-task/internal/model"
	"golang-scheduled-task/pkg/cache"
	"golang-scheduled-task/pkg/common"
	"golang-scheduled-task/pkg/httpclient"
	"golang-scheduled-task/pkg/logger"
	"golang-scheduled-task/pkg/utils"
	"net/http"
	"sort"
	"time"

	"golang.org/x/time/rate"
)

// holidayAPIRepository reads public holidays from a Nager.Date compatible
// API. A whole year is fetched at once and kept in the cache.
type holidayAPIRepository struct {
	httpClient     httpclient.HTTPClient
	cfg            *config.Config
	cache          cache.Cache
	logger         *logger.Logger
	requestLimiter *rate.Limiter
}

// HolidayAPIRepository is a read-only holiday source backed by a remote API.
type HolidayAPIRepository interface {
	HolidayCalendar
	// ListYear returns the nationwide holidays of a year ordered by date.
	ListYear(ctx context.Context, year int) ([]model.Holiday, error)
}

func NewHolidayAPIRepository(cfg *config.Config, c cache.Cache, log *logger.Logger) HolidayAPIRepository {
	perMinute := cfg.Holiday.MaxRequestPerMinute
	if perMinute <= 0 {
		perMinute = 30
	}
	requestLimiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)

	return &holidayAPIRepository{
		httpClient:     httpclient.New(cfg.Holiday.BaseURL, cfg.Holiday.Timeout, ""),
		cfg:            cfg,
		cache:          c,
		logger:         log,
		requestLimiter: requestLimiter,
	}
}

func (r *holidayAPIRepository) IsHoliday(ctx context.Context, date time.Time) (bool, error) {
	days, err := r.yearHolidays(ctx, date.Year())
	if err != nil {
		return false, err
	}
	_, ok := days[date.Format(time.DateOnly)]
	return ok, nil
}

func (r *holidayAPIRepository) ListYear(ctx context.Context, year int) ([]model.Holiday, error) {
	days, err := r.yearHolidays(ctx, year)
	if err != nil {
		return nil, err
	}
	holidays := make([]model.Holiday, 0, len(days))
	for raw, name := range days {
		date, err := utils.ParseDate(raw)
		if err != nil {
			r.logger.WarnContext(ctx, "Skipping malformed holiday date", logger.StringField("date", raw))
			continue
		}
		holidays = append(holidays, model.Holiday{Date: date, Name: name})
	}
	sort.Slice(holidays, func(i, j int) bool { return holidays[i].Date.Before(holidays[j].Date) })
	return holidays, nil
}

func (r *holidayAPIRepository) yearHolidays(ctx context.Context, year int) (map[string]string, error) {
	key := fmt.Sprintf(common.KEY_HOLIDAY_YEAR, r.cfg.Holiday.CountryCode, year)
	if val, found := cache.GetFromCache[map[string]string](r.cache, key); found {
		return val, nil
	}

	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	var result []dto.PublicHoliday
	endpoint := fmt.Sprintf("/api/v3/PublicHolidays/%d/%s", year, r.cfg.Holiday.CountryCode)
	resp, err := r.httpClient.Get(ctx, endpoint, nil, nil, &result)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to fetch public holidays", logger.ErrorField(err), logger.IntField("year", year))
		return nil, fmt.Errorf("failed to fetch public holidays: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		r.logger.ErrorContext(ctx, "Unexpected holiday API status",
			logger.IntField("status_code", resp.StatusCode),
			logger.IntField("year", year),
			logger.StringField("country_code", r.cfg.Holiday.CountryCode),
		)
		return nil, fmt.Errorf("holiday API returned status %d", resp.StatusCode)
	}

	days := make(map[string]string, len(result))
	for _, h := range result {
		if !h.Global {
			continue
		}
		days[h.Date] = h.Name
	}
	r.cache.Set(key, days, r.cfg.Holiday.CacheExpiration)
	r.logger.DebugContext(ctx, "Loaded public holidays", logger.IntField("year", year), logger.IntField("count", len(days)))
	return days, nil
}
