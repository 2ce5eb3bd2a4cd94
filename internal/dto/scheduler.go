package dto

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"golang-scheduled-task/internal/model"
	"golang-scheduled-task/pkg/utils"
)

type OutcomeKind string

const (
	OutcomeSuccess         OutcomeKind = "success"
	OutcomeFailed          OutcomeKind = "failed"
	OutcomeSkipped         OutcomeKind = "skipped"
	OutcomeNotDue          OutcomeKind = "not_due"
	OutcomeAlreadyExecuted OutcomeKind = "already_executed"
)

// ExecutionOutcome is what happened to one template in a run. Only success,
// failed and skipped outcomes have an execution row behind them.
type ExecutionOutcome struct {
	ScheduledTaskID uint        `json:"scheduled_task_id"`
	Date            string      `json:"date"`
	Kind            OutcomeKind `json:"kind"`
	Note            string      `json:"note,omitempty"`
	ExecutionID     uint        `json:"execution_id,omitempty"`
	CreatedTaskID   uint        `json:"created_task_id,omitempty"`
	DeletedTaskID   uint        `json:"deleted_task_id,omitempty"`
	Error           string      `json:"error,omitempty"`
}

type BatchReport struct {
	RunID           string             `json:"run_id"`
	AsOf            time.Time          `json:"as_of"`
	Date            string             `json:"date"`
	Templates       int                `json:"templates"`
	Succeeded       int                `json:"succeeded"`
	Failed          int                `json:"failed"`
	Skipped         int                `json:"skipped"`
	NotDue          int                `json:"not_due"`
	AlreadyExecuted int                `json:"already_executed"`
	Outcomes        []ExecutionOutcome `json:"outcomes"`
}

func (r *BatchReport) Add(o ExecutionOutcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Kind {
	case OutcomeSuccess:
		r.Succeeded++
	case OutcomeFailed:
		r.Failed++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeNotDue:
		r.NotDue++
	case OutcomeAlreadyExecuted:
		r.AlreadyExecuted++
	}
}

// MaterializedEvent is the payload of scheduled_task.materialized.
type MaterializedEvent struct {
	TaskID        uint   `json:"task_id"`
	TemplateID    uint   `json:"template_id"`
	GroupID       uint   `json:"group_id"`
	ExecutionDate string `json:"execution_date"`
	DeletedTaskID uint   `json:"deleted_task_id,omitempty"`
	Note          string `json:"note"`
}

type ScheduleInput struct {
	Frequency string   `json:"frequency" mapstructure:"frequency"`
	Time      string   `json:"time" mapstructure:"time"`
	Weekdays  []string `json:"weekdays" mapstructure:"weekdays"`
	MonthDays []int    `json:"month_days" mapstructure:"month_days"`
}

// ScheduledTaskInput is the external shape of a template, used by the
// import command and the validation endpoint.
type ScheduledTaskInput struct {
	GroupID                  uint            `json:"group_id" mapstructure:"group_id"`
	Title                    string          `json:"title" mapstructure:"title"`
	Description              string          `json:"description" mapstructure:"description"`
	AssignedUserID           *int64          `json:"assigned_user_id" mapstructure:"assigned_user_id"`
	Reward                   int             `json:"reward" mapstructure:"reward"`
	Tags                     []string        `json:"tags" mapstructure:"tags"`
	IsActive                 *bool           `json:"is_active" mapstructure:"is_active"`
	StartDate                string          `json:"start_date" mapstructure:"start_date"`
	EndDate                  string          `json:"end_date" mapstructure:"end_date"`
	DueDays                  int             `json:"due_days" mapstructure:"due_days"`
	DueHours                 int             `json:"due_hours" mapstructure:"due_hours"`
	SkipHolidays             bool            `json:"skip_holidays" mapstructure:"skip_holidays"`
	ExecuteOnNextBusinessDay bool            `json:"execute_on_next_business_day" mapstructure:"execute_on_next_business_day"`
	DeleteIncompleteOnCreate bool            `json:"delete_incomplete_on_create" mapstructure:"delete_incomplete_on_create"`
	RequiresImage            bool            `json:"requires_image" mapstructure:"requires_image"`
	RequiresApproval         bool            `json:"requires_approval" mapstructure:"requires_approval"`
	Schedules                []ScheduleInput `json:"schedules" mapstructure:"schedules"`
}

// ToModel converts the input without validating schedule semantics; that is
// the validator's job.
func (in ScheduledTaskInput) ToModel() (*model.ScheduledTask, error) {
	task := &model.ScheduledTask{
		GroupID:                  in.GroupID,
		Title:                    in.Title,
		Description:              in.Description,
		Reward:                   in.Reward,
		IsActive:                 in.IsActive == nil || *in.IsActive,
		DueDays:                  in.DueDays,
		DueHours:                 in.DueHours,
		SkipHolidays:             in.SkipHolidays,
		ExecuteOnNextBusinessDay: in.ExecuteOnNextBusinessDay,
		DeleteIncompleteOnCreate: in.DeleteIncompleteOnCreate,
		RequiresImage:            in.RequiresImage,
		RequiresApproval:         in.RequiresApproval,
	}
	if in.AssignedUserID != nil {
		task.AssignedUserID = sql.NullInt64{Int64: *in.AssignedUserID, Valid: true}
	}

	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}
	rawTags, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}
	task.Tags = rawTags

	if in.StartDate != "" {
		start, err := utils.ParseDate(in.StartDate)
		if err != nil {
			return nil, &model.ValidationError{Field: "start_date", Reason: fmt.Sprintf("expected YYYY-MM-DD, got %q", in.StartDate)}
		}
		task.StartDate = start
	}
	if in.EndDate != "" {
		end, err := utils.ParseDate(in.EndDate)
		if err != nil {
			return nil, &model.ValidationError{Field: "end_date", Reason: fmt.Sprintf("expected YYYY-MM-DD, got %q", in.EndDate)}
		}
		task.EndDate = sql.NullTime{Time: end, Valid: true}
	}

	for _, s := range in.Schedules {
		row := model.ScheduledTaskSchedule{
			Frequency: s.Frequency,
			TimeOfDay: s.Time,
		}
		if len(s.Weekdays) > 0 {
			row.Weekdays, _ = json.Marshal(s.Weekdays)
		}
		if len(s.MonthDays) > 0 {
			row.MonthDays, _ = json.Marshal(s.MonthDays)
		}
		task.Schedules = append(task.Schedules, row)
	}
	return task, nil
}
