package model

import (
	"errors"
	"fmt"
)

var ErrScheduledTaskNotFound = errors.New("scheduled task not found")

// ValidationError rejects a malformed template before it is stored.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid scheduled task: %s", e.Reason)
	}
	return fmt.Sprintf("invalid scheduled task: %s: %s", e.Field, e.Reason)
}

// EvaluationError is corrupt or unexpected schedule data found at run time.
type EvaluationError struct {
	ScheduledTaskID uint
	Err             error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluate scheduled task %d: %v", e.ScheduledTaskID, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// MaterializationError is a downstream failure while creating the task instance.
type MaterializationError struct {
	ScheduledTaskID uint
	Err             error
}

func (e *MaterializationError) Error() string {
	return fmt.Sprintf("materialize scheduled task %d: %v", e.ScheduledTaskID, e.Err)
}

func (e *MaterializationError) Unwrap() error { return e.Err }

// IdempotencyConflictError means another run already recorded a success for
// the same template and date. It is reported as skipped, not as a failure.
type IdempotencyConflictError struct {
	ScheduledTaskID uint
	Date            string
}

func (e *IdempotencyConflictError) Error() string {
	return fmt.Sprintf("scheduled task %d already executed for %s", e.ScheduledTaskID, e.Date)
}

// SystemicError aborts a whole run, e.g. when storage is unavailable.
type SystemicError struct {
	Op  string
	Err error
}

func (e *SystemicError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SystemicError) Unwrap() error { return e.Err }

func IsSystemic(err error) bool {
	var se *SystemicError
	return errors.As(err, &se)
}
