package model

import (
	"database/sql"
	"time"
)

type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionFailed  ExecutionStatus = "failed"
	ExecutionSkipped ExecutionStatus = "skipped"
)

// Notes recorded on execution rows. The makeup notes double as state: a
// pending makeup is the newest NoteHolidayMakeupPending row that no later
// success or NoteMakeupDropped row has consumed.
const (
	NoteScheduled            = "scheduled"
	NoteManual               = "manual"
	NoteForced               = "forced"
	NoteMakeup               = "holiday_makeup"
	NoteHolidaySkipped       = "holiday_skipped"
	NoteHolidayMakeupPending = "holiday_makeup_pending"
	NoteMakeupDropped        = "makeup_dropped"
	NoteIdempotencyConflict  = "idempotency_conflict"
)

// MaxErrorMessageLength bounds ScheduledTaskExecution.ErrorMessage, in runes.
const MaxErrorMessageLength = 500

// SuccessUniqueIndex is the storage-level idempotency guard: at most one
// success row per template and calendar date. Kept in sync with migrations.
const SuccessUniqueIndex = "ux_scheduled_task_executions_success"

const SuccessUniqueIndexDDL = `CREATE UNIQUE INDEX IF NOT EXISTS ` + SuccessUniqueIndex + `
	ON scheduled_task_executions (scheduled_task_id, execution_date)
	WHERE status = 'success'`

// ScheduledTaskExecution is an append-only audit row. Rows are inserted by
// the execution coordinator and never updated.
type ScheduledTaskExecution struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	ScheduledTaskID uint            `gorm:"not null;index:idx_scheduled_task_executions_task_date" json:"scheduled_task_id"`
	ExecutionDate   time.Time       `gorm:"type:date;not null;index:idx_scheduled_task_executions_task_date" json:"execution_date"`
	ExecutedAt      time.Time       `gorm:"not null" json:"executed_at"`
	Status          ExecutionStatus `gorm:"type:varchar(20);not null" json:"status"`
	CreatedTaskID   sql.NullInt64   `json:"created_task_id"`
	DeletedTaskID   sql.NullInt64   `json:"deleted_task_id"`
	Note            sql.NullString  `gorm:"type:varchar(100)" json:"note"`
	ErrorMessage    sql.NullString  `gorm:"type:varchar(500)" json:"error_message"`
	Trigger         string          `gorm:"type:varchar(20);not null;default:'scheduled'" json:"trigger"`
	RunID           string          `gorm:"type:varchar(36)" json:"run_id"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (ScheduledTaskExecution) TableName() string {
	return "scheduled_task_executions"
}

type ListExecutionParam struct {
	ScheduledTaskID uint
	Limit           *int
}
