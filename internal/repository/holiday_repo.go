package repository

import (
	"context"
	"fmt"
	"golang-scheduled-task/config"
	"golang-scheduled-task/internal/model"
	"golang-scheduled-task/pkg/cache"
	"golang-scheduled-task/pkg/common"
	"golang-scheduled-task/pkg/logger"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HolidayCalendar answers whether a calendar date is a holiday. Dates are
// midnight UTC values as produced by utils.CalendarDate.
type HolidayCalendar interface {
	IsHoliday(ctx context.Context, date time.Time) (bool, error)
}

type HolidayRepository interface {
	HolidayCalendar
	Upsert(ctx context.Context, holiday *model.Holiday) error
	ListBetween(ctx context.Context, from, to time.Time) ([]model.Holiday, error)
}

type holidayRepository struct {
	db *gorm.DB
}

func NewHolidayRepository(db *gorm.DB) HolidayRepository {
	return &holidayRepository{db: db}
}

func (r *holidayRepository) IsHoliday(ctx context.Context, date time.Time) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Holiday{}).Where("date = ?", date).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *holidayRepository) Upsert(ctx context.Context, holiday *model.Holiday) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"name"}),
		}).
		Create(holiday).Error
}

func (r *holidayRepository) ListBetween(ctx context.Context, from, to time.Time) ([]model.Holiday, error) {
	var holidays []model.Holiday
	err := r.db.WithContext(ctx).
		Where("date >= ? AND date <= ?", from, to).
		Order("date ASC").
		Find(&holidays).Error
	if err != nil {
		return nil, err
	}
	return holidays, nil
}

// cachedHolidayCalendar memoizes lookups per date and optionally treats
// weekends as non-business days. Negative answers use their own, shorter
// expiration so a holiday stored while the scheduler runs is seen quickly;
// a non-positive negativeExpiration disables caching them.
type cachedHolidayCalendar struct {
	source              HolidayCalendar
	cache               cache.Cache
	expiration          time.Duration
	negativeExpiration  time.Duration
	weekendsAreHolidays bool
	log                 *logger.Logger
}

func NewCachedHolidayCalendar(source HolidayCalendar, c cache.Cache, expiration, negativeExpiration time.Duration, weekendsAreHolidays bool, log *logger.Logger) HolidayCalendar {
	return &cachedHolidayCalendar{
		source:              source,
		cache:               c,
		expiration:          expiration,
		negativeExpiration:  negativeExpiration,
		weekendsAreHolidays: weekendsAreHolidays,
		log:                 log,
	}
}

func (c *cachedHolidayCalendar) IsHoliday(ctx context.Context, date time.Time) (bool, error) {
	if c.weekendsAreHolidays {
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return true, nil
		}
	}

	key := fmt.Sprintf(common.KEY_HOLIDAY_DATE, date.Format(time.DateOnly))
	if val, found := cache.GetFromCache[bool](c.cache, key); found {
		return val, nil
	}

	holiday, err := c.source.IsHoliday(ctx, date)
	if err != nil {
		c.log.WarnContext(ctx, "Holiday lookup failed", logger.DateField("date", date), logger.ErrorField(err))
		return false, err
	}
	switch {
	case holiday:
		c.cache.Set(key, true, c.expiration)
	case c.negativeExpiration > 0:
		c.cache.Set(key, false, c.negativeExpiration)
	}
	return holiday, nil
}

// NewHolidayCalendar builds the calendar selected by configuration.
func NewHolidayCalendar(cfg *config.Config, c cache.Cache, db *gorm.DB, log *logger.Logger) (HolidayCalendar, error) {
	var source HolidayCalendar
	switch cfg.Holiday.Source {
	case "", "database":
		source = NewHolidayRepository(db)
	case "api":
		source = NewHolidayAPIRepository(cfg, c, log)
	default:
		return nil, fmt.Errorf("unknown holiday source %q", cfg.Holiday.Source)
	}
	return NewCachedHolidayCalendar(source, c, cfg.Holiday.CacheExpiration, cfg.Holiday.NegativeCacheExpiration, cfg.Holiday.WeekendsAreHolidays, log), nil
}
