package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"golang-scheduled-task/internal/dto"
	"golang-scheduled-task/internal/model"
	"golang-scheduled-task/internal/repository"
	"golang-scheduled-task/pkg/logger"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// ScheduledTaskService validates and stores templates. Editing and deleting
// templates belongs to the owning application.
type ScheduledTaskService interface {
	Validate(ctx context.Context, input dto.ScheduledTaskInput) (*model.ScheduledTask, error)
	Create(ctx context.Context, input dto.ScheduledTaskInput) (*model.ScheduledTask, error)
}

type scheduledTaskService struct {
	log               *logger.Logger
	validator         *goValidator.Validate
	scheduledTaskRepo repository.ScheduledTaskRepository
}

func NewScheduledTaskService(log *logger.Logger, validator *goValidator.Validate, scheduledTaskRepo repository.ScheduledTaskRepository) ScheduledTaskService {
	validator.RegisterTagNameFunc(jsonFieldName)
	return &scheduledTaskService{
		log:               log,
		validator:         validator,
		scheduledTaskRepo: scheduledTaskRepo,
	}
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// Validate returns the template the input describes, or a *model.ValidationError.
func (s *scheduledTaskService) Validate(ctx context.Context, input dto.ScheduledTaskInput) (*model.ScheduledTask, error) {
	task, err := input.ToModel()
	if err != nil {
		return nil, err
	}

	if err := s.validator.StructCtx(ctx, task); err != nil {
		var fieldErrs goValidator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return nil, &model.ValidationError{Field: fieldPath(fe), Reason: failedRule(fe)}
		}
		return nil, &model.ValidationError{Reason: err.Error()}
	}

	for i, row := range task.Schedules {
		if _, err := row.Rule(); err != nil {
			return nil, &model.ValidationError{Field: fmt.Sprintf("schedules[%d]", i), Reason: err.Error()}
		}
	}
	if task.EndDate.Valid && task.EndDate.Time.Before(task.StartDate) {
		return nil, &model.ValidationError{Field: "end_date", Reason: "must not be before start_date"}
	}
	if task.ExecuteOnNextBusinessDay && !task.SkipHolidays {
		return nil, &model.ValidationError{Field: "execute_on_next_business_day", Reason: "requires skip_holidays"}
	}

	if task.Rules, err = task.ParseRules(); err != nil {
		return nil, &model.ValidationError{Field: "schedules", Reason: err.Error()}
	}
	return task, nil
}

func (s *scheduledTaskService) Create(ctx context.Context, input dto.ScheduledTaskInput) (*model.ScheduledTask, error) {
	task, err := s.Validate(ctx, input)
	if err != nil {
		return nil, err
	}
	if err := s.scheduledTaskRepo.Create(ctx, task); err != nil {
		s.log.ErrorContext(ctx, "Failed to create scheduled task", logger.StringField("title", task.Title), logger.ErrorField(err))
		return nil, fmt.Errorf("create scheduled task: %w", err)
	}
	s.log.InfoContext(ctx, "Scheduled task created",
		logger.UintField("scheduled_task_id", task.ID),
		logger.UintField("group_id", task.GroupID),
		logger.IntField("schedules", len(task.Schedules)),
	)
	return task, nil
}

// fieldPath drops the root struct name, e.g. "ScheduledTask.schedules[0].time".
func fieldPath(fe goValidator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func failedRule(fe goValidator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("needs at least %s item(s)", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "datetime":
		return "must be HH:MM"
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

// ValidateCronSpec checks the batch trigger expression; the standard five
// field format and descriptors such as @hourly are accepted.
func ValidateCronSpec(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid scheduler cron %q: %w", spec, err)
	}
	return nil
}
