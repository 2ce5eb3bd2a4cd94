package repository

import (
	"golang-scheduled-task/config"
	"golang-scheduled-task/pkg/cache"
	"golang-scheduled-task/pkg/logger"

	"gorm.io/gorm"
)

type Repository struct {
	ScheduledTaskRepo ScheduledTaskRepository
	ExecutionRepo     ExecutionRepository
	TaskService       TaskService
	HolidayRepo       HolidayRepository
	HolidayCalendar   HolidayCalendar
	UnitOfWork        UnitOfWork
}

func NewRepository(cfg *config.Config, inmemoryCache cache.Cache, db *gorm.DB, log *logger.Logger) (*Repository, error) {
	calendar, err := NewHolidayCalendar(cfg, inmemoryCache, db, log)
	if err != nil {
		return nil, err
	}

	return &Repository{
		ScheduledTaskRepo: NewScheduledTaskRepository(db),
		ExecutionRepo:     NewExecutionRepository(db),
		TaskService:       NewTaskRepository(db),
		HolidayRepo:       NewHolidayRepository(db),
		HolidayCalendar:   calendar,
		UnitOfWork:        NewUnitOfWork(db),
	}, nil
}
