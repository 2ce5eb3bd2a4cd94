package repository

import (
	"context"
	"errors"
	"golang-scheduled-task/internal/model"
	"golang-scheduled-task/pkg/utils"
	"time"

	"gorm.io/gorm"
)

// ExecutionRepository is the only write path into scheduled_task_executions.
// It offers inserts and reads; rows are never updated or deleted.
type ExecutionRepository interface {
	Create(ctx context.Context, execution *model.ScheduledTaskExecution, opts ...utils.DBOption) error
	ExistsSuccess(ctx context.Context, scheduledTaskID uint, date time.Time, opts ...utils.DBOption) (bool, error)
	ExistsWithNote(ctx context.Context, scheduledTaskID uint, date time.Time, status model.ExecutionStatus, note string, opts ...utils.DBOption) (bool, error)
	ListByScheduledTask(ctx context.Context, param model.ListExecutionParam, opts ...utils.DBOption) ([]model.ScheduledTaskExecution, error)
	PendingMakeup(ctx context.Context, scheduledTaskID uint, before time.Time, opts ...utils.DBOption) (*model.ScheduledTaskExecution, error)
}

type executionRepository struct {
	db *gorm.DB
}

func NewExecutionRepository(db *gorm.DB) ExecutionRepository {
	return &executionRepository{db: db}
}

// Create inserts an execution row. A second success for the same template
// and date fails with gorm.ErrDuplicatedKey from the unique index.
func (r *executionRepository) Create(ctx context.Context, execution *model.ScheduledTaskExecution, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(execution).Error
}

func (r *executionRepository) ExistsSuccess(ctx context.Context, scheduledTaskID uint, date time.Time, opts ...utils.DBOption) (bool, error) {
	var count int64
	err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Model(&model.ScheduledTaskExecution{}).
		Where("scheduled_task_id = ? AND execution_date = ? AND status = ?", scheduledTaskID, date, model.ExecutionSuccess).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *executionRepository) ExistsWithNote(ctx context.Context, scheduledTaskID uint, date time.Time, status model.ExecutionStatus, note string, opts ...utils.DBOption) (bool, error) {
	var count int64
	err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Model(&model.ScheduledTaskExecution{}).
		Where("scheduled_task_id = ? AND execution_date = ? AND status = ? AND note = ?", scheduledTaskID, date, status, note).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListByScheduledTask returns executions newest first.
func (r *executionRepository) ListByScheduledTask(ctx context.Context, param model.ListExecutionParam, opts ...utils.DBOption) ([]model.ScheduledTaskExecution, error) {
	var executions []model.ScheduledTaskExecution
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Where("scheduled_task_id = ?", param.ScheduledTaskID).
		Order("executed_at DESC").
		Order("id DESC")
	if param.Limit != nil {
		db = db.Limit(*param.Limit)
	}
	if err := db.Find(&executions).Error; err != nil {
		return nil, err
	}
	return executions, nil
}

// PendingMakeup returns the newest holiday skip awaiting a makeup before the
// given date, or nil when it has already been consumed by a later success or
// dropped by the makeup policy.
func (r *executionRepository) PendingMakeup(ctx context.Context, scheduledTaskID uint, before time.Time, opts ...utils.DBOption) (*model.ScheduledTaskExecution, error) {
	var pending model.ScheduledTaskExecution
	err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Where("scheduled_task_id = ? AND status = ? AND note = ? AND execution_date < ?",
			scheduledTaskID, model.ExecutionSkipped, model.NoteHolidayMakeupPending, before).
		Order("execution_date DESC").
		Order("id DESC").
		First(&pending).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var consumed int64
	err = utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Model(&model.ScheduledTaskExecution{}).
		Where("scheduled_task_id = ? AND execution_date > ? AND (status = ? OR note = ?)",
			scheduledTaskID, pending.ExecutionDate, model.ExecutionSuccess, model.NoteMakeupDropped).
		Count(&consumed).Error
	if err != nil {
		return nil, err
	}
	if consumed > 0 {
		return nil, nil
	}
	return &pending, nil
}
