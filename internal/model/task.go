package model

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"
)

type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
	TaskApproved  TaskStatus = "approved"
)

// Task is a concrete task instance. The table belongs to the task subsystem;
// this engine only creates rows and deletes stale incomplete ones.
type Task struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	GroupID          uint           `gorm:"not null;index" json:"group_id"`
	ScheduledTaskID  sql.NullInt64  `gorm:"index" json:"scheduled_task_id"`
	Title            string         `gorm:"type:varchar(255);not null" json:"title"`
	Description      string         `gorm:"type:text" json:"description"`
	Reward           int            `gorm:"not null;default:0" json:"reward"`
	Tags             datatypes.JSON `gorm:"type:jsonb" json:"tags"`
	AssignedUserID   sql.NullInt64  `json:"assigned_user_id"`
	RequiresImage    bool           `gorm:"not null;default:false" json:"requires_image"`
	RequiresApproval bool           `gorm:"not null;default:false" json:"requires_approval"`
	DueAt            time.Time      `gorm:"not null" json:"due_at"`
	Status           TaskStatus     `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (Task) TableName() string {
	return "tasks"
}

func (t *Task) IsIncomplete() bool {
	return t.Status != TaskCompleted && t.Status != TaskApproved
}

// TaskAttributes is what the materializer hands to the task subsystem.
type TaskAttributes struct {
	GroupID          uint
	ScheduledTaskID  uint
	Title            string
	Description      string
	Reward           int
	Tags             datatypes.JSON
	AssignedUserID   sql.NullInt64
	RequiresImage    bool
	RequiresApproval bool
	DueAt            time.Time
}
