package model

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"golang-scheduled-task/internal/schedule"

	"gorm.io/datatypes"
)

// ScheduledTask is a recurring task template owned by a group.
type ScheduledTask struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	GroupID     uint   `gorm:"not null;index" json:"group_id" validate:"required"`
	Title       string `gorm:"type:varchar(255);not null" json:"title" validate:"required,max=255"`
	Description string `gorm:"type:text" json:"description"`
	// AssignedUserID is explicit: Valid=false means unassigned, and the
	// generated task lands in the group's shared pool.
	AssignedUserID sql.NullInt64  `json:"assigned_user_id"`
	Reward         int            `gorm:"not null;default:0" json:"reward" validate:"gte=0"`
	Tags           datatypes.JSON `gorm:"type:jsonb" json:"tags"`
	IsActive       bool           `gorm:"not null" json:"is_active"`
	StartDate      time.Time      `gorm:"type:date;not null" json:"start_date" validate:"required"`
	EndDate        sql.NullTime   `gorm:"type:date" json:"end_date"`
	DueDays        int            `gorm:"not null;default:0" json:"due_days" validate:"gte=0"`
	DueHours       int            `gorm:"not null;default:0" json:"due_hours" validate:"gte=0,lte=23"`

	SkipHolidays             bool `gorm:"not null;default:false" json:"skip_holidays"`
	ExecuteOnNextBusinessDay bool `gorm:"not null;default:false" json:"execute_on_next_business_day"`
	DeleteIncompleteOnCreate bool `gorm:"not null;default:false" json:"delete_incomplete_on_create"`
	RequiresImage            bool `gorm:"not null;default:false" json:"requires_image"`
	RequiresApproval         bool `gorm:"not null;default:false" json:"requires_approval"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Schedules []ScheduledTaskSchedule `gorm:"foreignKey:ScheduledTaskID" json:"schedules" validate:"min=1,dive"`

	// Rules is Schedules parsed once by the repository.
	Rules []schedule.Rule `gorm:"-" json:"-" validate:"-"`
	// RulesErr is set instead of Rules when stored schedule data is corrupt.
	RulesErr error `gorm:"-" json:"-" validate:"-"`
}

func (ScheduledTask) TableName() string {
	return "scheduled_tasks"
}

// DueAt is the generated task's due time for a firing on date. Days and hours
// are counted on the wall clock of loc, so a DST change never moves the due
// time off its calendar day.
func (t *ScheduledTask) DueAt(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d+t.DueDays, t.DueHours, 0, 0, 0, loc)
}

func (t *ScheduledTask) IsUnassigned() bool {
	return !t.AssignedUserID.Valid
}

// ValidOn reports whether date falls inside the template's validity window.
func (t *ScheduledTask) ValidOn(date time.Time) bool {
	if date.Before(t.StartDate) {
		return false
	}
	return !t.EndDate.Valid || !date.After(t.EndDate.Time)
}

func (t *ScheduledTask) TagList() []string {
	var tags []string
	if len(t.Tags) == 0 {
		return tags
	}
	_ = json.Unmarshal(t.Tags, &tags)
	return tags
}

// ParseRules converts the stored schedule rows into rules.
func (t *ScheduledTask) ParseRules() ([]schedule.Rule, error) {
	if len(t.Schedules) == 0 {
		return nil, fmt.Errorf("scheduled task %d has no schedules", t.ID)
	}
	rules := make([]schedule.Rule, 0, len(t.Schedules))
	for _, s := range t.Schedules {
		rule, err := s.Rule()
		if err != nil {
			return nil, fmt.Errorf("schedule %d: %w", s.ID, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// ScheduledTaskSchedule is the stored form of one recurrence rule.
type ScheduledTaskSchedule struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	ScheduledTaskID uint           `gorm:"not null;index" json:"scheduled_task_id"`
	Frequency       string         `gorm:"type:varchar(20);not null" json:"frequency" validate:"required,oneof=daily weekly monthly"`
	TimeOfDay       string         `gorm:"type:varchar(5);not null" json:"time" validate:"required,datetime=15:04"`
	Weekdays        datatypes.JSON `gorm:"type:jsonb" json:"weekdays,omitempty"`
	MonthDays       datatypes.JSON `gorm:"type:jsonb" json:"month_days,omitempty"`
}

func (ScheduledTaskSchedule) TableName() string {
	return "scheduled_task_schedules"
}

func (s ScheduledTaskSchedule) Rule() (schedule.Rule, error) {
	var (
		weekdays  []string
		monthDays []int
	)
	if len(s.Weekdays) > 0 {
		if err := json.Unmarshal(s.Weekdays, &weekdays); err != nil {
			return nil, fmt.Errorf("decode weekdays: %w", err)
		}
	}
	if len(s.MonthDays) > 0 {
		if err := json.Unmarshal(s.MonthDays, &monthDays); err != nil {
			return nil, fmt.Errorf("decode month days: %w", err)
		}
	}
	return schedule.Parse(s.Frequency, s.TimeOfDay, weekdays, monthDays)
}

// NewScheduleRow is the inverse of ScheduledTaskSchedule.Rule.
func NewScheduleRow(rule schedule.Rule) ScheduledTaskSchedule {
	row := ScheduledTaskSchedule{
		Frequency: string(rule.Frequency()),
		TimeOfDay: rule.At().String(),
	}
	switch r := rule.(type) {
	case schedule.Weekly:
		names := make([]string, 0, len(r.Days))
		for _, d := range r.Days {
			names = append(names, schedule.WeekdayName(d))
		}
		row.Weekdays, _ = json.Marshal(names)
	case schedule.Monthly:
		row.MonthDays, _ = json.Marshal(r.Dates)
	}
	return row
}

type ListScheduledTaskParam struct {
	GroupID  *uint `json:"group_id" query:"group_id"`
	IsActive *bool `json:"is_active" query:"is_active"`
	Limit    *int  `json:"limit" query:"limit"`
}
