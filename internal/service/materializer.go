package service

import (
	"context"
	"fmt"
	"time"

	"golang-scheduled-task/internal/model"
	"golang-scheduled-task/internal/repository"
	"golang-scheduled-task/pkg/logger"
	"golang-scheduled-task/pkg/utils"
)

type MaterializeResult struct {
	CreatedTaskID uint
	// DeletedTaskID is zero when no stale task was removed.
	DeletedTaskID uint
	DueAt         time.Time
}

// TaskMaterializer turns a template and a firing date into a task instance.
type TaskMaterializer interface {
	Materialize(ctx context.Context, tpl *model.ScheduledTask, effectiveDate time.Time, opts ...utils.DBOption) (MaterializeResult, error)
}

type taskMaterializer struct {
	log   *logger.Logger
	loc   *time.Location
	tasks repository.TaskService
}

func NewTaskMaterializer(log *logger.Logger, loc *time.Location, tasks repository.TaskService) TaskMaterializer {
	return &taskMaterializer{log: log, loc: loc, tasks: tasks}
}

// Materialize creates the task and, when the template asks for it, removes
// the newest still-incomplete task from an earlier firing. Pass utils.WithTx
// so both steps share the caller's transaction.
func (m *taskMaterializer) Materialize(ctx context.Context, tpl *model.ScheduledTask, effectiveDate time.Time, opts ...utils.DBOption) (MaterializeResult, error) {
	var stale *model.Task
	if tpl.DeleteIncompleteOnCreate {
		prior, err := m.tasks.FindLatestIncomplete(ctx, tpl.ID, opts...)
		if err != nil {
			return MaterializeResult{}, fmt.Errorf("find incomplete task: %w", err)
		}
		stale = prior
	}

	dueAt := tpl.DueAt(effectiveDate, m.loc)
	taskID, err := m.tasks.Create(ctx, model.TaskAttributes{
		GroupID:          tpl.GroupID,
		ScheduledTaskID:  tpl.ID,
		Title:            tpl.Title,
		Description:      tpl.Description,
		Reward:           tpl.Reward,
		Tags:             tpl.Tags,
		AssignedUserID:   tpl.AssignedUserID,
		RequiresImage:    tpl.RequiresImage,
		RequiresApproval: tpl.RequiresApproval,
		DueAt:            dueAt,
	}, opts...)
	if err != nil {
		return MaterializeResult{}, fmt.Errorf("create task: %w", err)
	}

	result := MaterializeResult{CreatedTaskID: taskID, DueAt: dueAt}
	if stale == nil {
		return result, nil
	}

	deleted, err := m.tasks.DeleteIncomplete(ctx, stale.ID, opts...)
	if err != nil {
		return MaterializeResult{}, fmt.Errorf("delete incomplete task %d: %w", stale.ID, err)
	}
	if deleted {
		result.DeletedTaskID = stale.ID
	} else {
		m.log.FromContext(ctx).DebugContext(ctx, "Previous task completed meanwhile, kept",
			logger.UintField("scheduled_task_id", tpl.ID),
			logger.UintField("task_id", stale.ID),
		)
	}
	return result, nil
}
