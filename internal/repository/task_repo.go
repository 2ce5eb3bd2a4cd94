package repository

import (
	"context"
	"database/sql"
	"errors"
	"golang-scheduled-task/internal/model"
	"golang-scheduled-task/pkg/utils"

	"gorm.io/gorm"
)

// TaskService is the task subsystem as seen by the materializer. Calls take
// DBOptions so they can join the materialization transaction.
type TaskService interface {
	Create(ctx context.Context, attrs model.TaskAttributes, opts ...utils.DBOption) (uint, error)
	FindLatestIncomplete(ctx context.Context, scheduledTaskID uint, opts ...utils.DBOption) (*model.Task, error)
	DeleteIncomplete(ctx context.Context, taskID uint, opts ...utils.DBOption) (bool, error)
	FindByID(ctx context.Context, taskID uint, opts ...utils.DBOption) (*model.Task, error)
}

type taskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) TaskService {
	return &taskRepository{db: db}
}

func (r *taskRepository) Create(ctx context.Context, attrs model.TaskAttributes, opts ...utils.DBOption) (uint, error) {
	task := model.Task{
		GroupID:          attrs.GroupID,
		ScheduledTaskID:  sql.NullInt64{Int64: int64(attrs.ScheduledTaskID), Valid: attrs.ScheduledTaskID != 0},
		Title:            attrs.Title,
		Description:      attrs.Description,
		Reward:           attrs.Reward,
		Tags:             attrs.Tags,
		AssignedUserID:   attrs.AssignedUserID,
		RequiresImage:    attrs.RequiresImage,
		RequiresApproval: attrs.RequiresApproval,
		DueAt:            attrs.DueAt,
		Status:           model.TaskPending,
	}
	if err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(&task).Error; err != nil {
		return 0, err
	}
	return task.ID, nil
}

// FindLatestIncomplete returns the newest task generated by the template that
// is neither completed nor approved, or nil.
func (r *taskRepository) FindLatestIncomplete(ctx context.Context, scheduledTaskID uint, opts ...utils.DBOption) (*model.Task, error) {
	var task model.Task
	err := utils.ApplyOptions(r.db.WithContext(ctx), append(opts, utils.WithLock())...).
		Where("scheduled_task_id = ? AND status NOT IN ?", scheduledTaskID, []model.TaskStatus{model.TaskCompleted, model.TaskApproved}).
		Order("created_at DESC").
		Order("id DESC").
		First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

// DeleteIncomplete deletes the task only while it is still incomplete and
// reports whether a row was removed.
func (r *taskRepository) DeleteIncomplete(ctx context.Context, taskID uint, opts ...utils.DBOption) (bool, error) {
	result := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Where("id = ? AND status NOT IN ?", taskID, []model.TaskStatus{model.TaskCompleted, model.TaskApproved}).
		Delete(&model.Task{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *taskRepository) FindByID(ctx context.Context, taskID uint, opts ...utils.DBOption) (*model.Task, error) {
	var task model.Task
	if err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).First(&task, taskID).Error; err != nil {
		return nil, err
	}
	return &task, nil
}
