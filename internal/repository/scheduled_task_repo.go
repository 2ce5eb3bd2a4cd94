package repository

import (
	"context"
	"errors"
	"golang-scheduled-task/internal/model"
	"golang-scheduled-task/pkg/utils"
	"time"

	"gorm.io/gorm"
)

type ScheduledTaskRepository interface {
	FindActiveForDate(ctx context.Context, date time.Time, opts ...utils.DBOption) ([]model.ScheduledTask, error)
	FindByID(ctx context.Context, id uint, opts ...utils.DBOption) (*model.ScheduledTask, error)
	List(ctx context.Context, param model.ListScheduledTaskParam, opts ...utils.DBOption) ([]model.ScheduledTask, error)
	Create(ctx context.Context, task *model.ScheduledTask, opts ...utils.DBOption) error
}

type scheduledTaskRepository struct {
	db *gorm.DB
}

func NewScheduledTaskRepository(db *gorm.DB) ScheduledTaskRepository {
	return &scheduledTaskRepository{db: db}
}

func preloadSchedules(db *gorm.DB) *gorm.DB {
	return db.Order("scheduled_task_schedules.id ASC")
}

// FindActiveForDate loads active templates whose validity window contains
// date, ordered by id so reruns process templates in the same order.
func (r *scheduledTaskRepository) FindActiveForDate(ctx context.Context, date time.Time, opts ...utils.DBOption) ([]model.ScheduledTask, error) {
	var tasks []model.ScheduledTask
	err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Preload("Schedules", preloadSchedules).
		Where("is_active = ? AND start_date <= ? AND (end_date IS NULL OR end_date >= ?)", true, date, date).
		Order("id ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	parseRules(tasks)
	return tasks, nil
}

func (r *scheduledTaskRepository) FindByID(ctx context.Context, id uint, opts ...utils.DBOption) (*model.ScheduledTask, error) {
	var task model.ScheduledTask
	err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Preload("Schedules", preloadSchedules).
		First(&task, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrScheduledTaskNotFound
		}
		return nil, err
	}
	task.Rules, task.RulesErr = task.ParseRules()
	return &task, nil
}

func (r *scheduledTaskRepository) List(ctx context.Context, param model.ListScheduledTaskParam, opts ...utils.DBOption) ([]model.ScheduledTask, error) {
	var tasks []model.ScheduledTask
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...).Model(&model.ScheduledTask{})
	if param.GroupID != nil {
		db = db.Where("group_id = ?", *param.GroupID)
	}
	if param.IsActive != nil {
		db = db.Where("is_active = ?", *param.IsActive)
	}
	if param.Limit != nil {
		db = db.Limit(*param.Limit)
	}
	if err := db.Preload("Schedules", preloadSchedules).Order("id ASC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	parseRules(tasks)
	return tasks, nil
}

// Create stores a template with its schedules. Validation happens before
// this call, in the service layer.
func (r *scheduledTaskRepository) Create(ctx context.Context, task *model.ScheduledTask, opts ...utils.DBOption) error {
	if err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(task).Error; err != nil {
		return err
	}
	task.Rules, task.RulesErr = task.ParseRules()
	return nil
}

func parseRules(tasks []model.ScheduledTask) {
	for i := range tasks {
		tasks[i].Rules, tasks[i].RulesErr = tasks[i].ParseRules()
	}
}
