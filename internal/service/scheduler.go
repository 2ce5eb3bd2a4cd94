package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang-scheduled-task/config"
	"golang-scheduled-task/internal/dto"
	"golang-scheduled-task/internal/model"
	"golang-scheduled-task/internal/repository"
	"golang-scheduled-task/internal/schedule"
	"golang-scheduled-task/pkg/common"
	"golang-scheduled-task/pkg/eventbus"
	"golang-scheduled-task/pkg/logger"
	"golang-scheduled-task/pkg/telemetry"
	"golang-scheduled-task/pkg/utils"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	noteInactive        = "inactive"
	noteOutsideValidity = "outside_validity_window"
)

type SchedulerService interface {
	// RunBatch evaluates every active template for the calendar date of asOf.
	// It only returns an error when the run as a whole could not proceed.
	RunBatch(ctx context.Context, asOf time.Time) (*dto.BatchReport, error)
	// RunOne runs a single template. force bypasses rule, holiday and time
	// window evaluation but never the once-per-date guarantee.
	RunOne(ctx context.Context, scheduledTaskID uint, asOf time.Time, force bool) (*dto.ExecutionOutcome, error)
	List(ctx context.Context, param model.ListScheduledTaskParam) ([]model.ScheduledTask, error)
	History(ctx context.Context, scheduledTaskID uint, limit int) ([]model.ScheduledTaskExecution, error)
	Location() *time.Location
}

type runMode struct {
	trigger string
	force   bool
	runID   string
}

type schedulerService struct {
	cfg               *config.Config
	log               *logger.Logger
	loc               *time.Location
	evaluator         schedule.Evaluator
	resolver          BusinessDayResolver
	materializer      TaskMaterializer
	scheduledTaskRepo repository.ScheduledTaskRepository
	executionRepo     repository.ExecutionRepository
	uow               repository.UnitOfWork
	publisher         eventbus.Publisher
}

func NewSchedulerService(
	cfg *config.Config,
	log *logger.Logger,
	loc *time.Location,
	evaluator schedule.Evaluator,
	resolver BusinessDayResolver,
	materializer TaskMaterializer,
	scheduledTaskRepo repository.ScheduledTaskRepository,
	executionRepo repository.ExecutionRepository,
	uow repository.UnitOfWork,
	publisher eventbus.Publisher,
) *schedulerService {
	return &schedulerService{
		cfg:               cfg,
		log:               log,
		loc:               loc,
		evaluator:         evaluator,
		resolver:          resolver,
		materializer:      materializer,
		scheduledTaskRepo: scheduledTaskRepo,
		executionRepo:     executionRepo,
		uow:               uow,
		publisher:         publisher,
	}
}

func (s *schedulerService) Location() *time.Location {
	return s.loc
}

func (s *schedulerService) RunBatch(ctx context.Context, asOf time.Time) (*dto.BatchReport, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := s.log.With(logger.StringField(common.KEY_LOG_RUN_ID, runID))
	ctx = logger.NewContext(ctx, log)

	date := utils.CalendarDate(asOf, s.loc)
	report := &dto.BatchReport{
		RunID: runID,
		AsOf:  asOf,
		Date:  date.Format(time.DateOnly),
	}

	templates, err := s.scheduledTaskRepo.FindActiveForDate(ctx, date)
	if err != nil {
		telemetry.BatchRunsTotal.WithLabelValues("aborted").Inc()
		log.ErrorContext(ctx, "Failed to load active scheduled tasks", logger.ErrorField(err))
		return report, &model.SystemicError{Op: "load active scheduled tasks", Err: err}
	}
	report.Templates = len(templates)

	if len(templates) == 0 {
		log.InfoContext(ctx, "No scheduled tasks active", logger.DateField("date", date))
		telemetry.BatchRunsTotal.WithLabelValues("completed").Inc()
		return report, nil
	}

	log.InfoContext(ctx, "Start scheduled task run",
		logger.DateField("date", date),
		logger.TimeField("as_of", asOf),
		logger.IntField("template_count", len(templates)),
		logger.IntField("max_concurrency", s.cfg.Scheduler.MaxConcurrency),
	)

	mode := runMode{trigger: common.TRIGGER_SCHEDULED, runID: runID}
	outcomes := make([]*dto.ExecutionOutcome, len(templates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Scheduler.MaxConcurrency)
	for i := range templates {
		if !utils.ShouldContinue(gctx, log) {
			break
		}
		i := i
		tpl := &templates[i]
		g.Go(func() error {
			outcome, err := s.safeExecute(gctx, tpl, asOf, date, mode)
			if err != nil {
				return err
			}
			outcomes[i] = &outcome
			return nil
		})
	}
	err = g.Wait()

	for _, o := range outcomes {
		if o != nil {
			report.Add(*o)
		}
	}
	telemetry.BatchDurationSeconds.Observe(time.Since(start).Seconds())

	if err == nil && ctx.Err() != nil {
		err = &model.SystemicError{Op: "scheduled task run cancelled", Err: ctx.Err()}
	}
	if err != nil {
		telemetry.BatchRunsTotal.WithLabelValues("aborted").Inc()
		log.ErrorContext(ctx, "Scheduled task run aborted",
			logger.ErrorField(err),
			logger.IntField("processed", len(report.Outcomes)),
		)
		return report, err
	}

	telemetry.BatchRunsTotal.WithLabelValues("completed").Inc()
	log.InfoContext(ctx, "Scheduled task run completed",
		logger.IntField("succeeded", report.Succeeded),
		logger.IntField("failed", report.Failed),
		logger.IntField("skipped", report.Skipped),
		logger.IntField("not_due", report.NotDue),
		logger.IntField("already_executed", report.AlreadyExecuted),
		logger.DurationField("elapsed", time.Since(start)),
	)
	return report, nil
}

func (s *schedulerService) RunOne(ctx context.Context, scheduledTaskID uint, asOf time.Time, force bool) (*dto.ExecutionOutcome, error) {
	runID := uuid.NewString()
	log := s.log.With(
		logger.StringField(common.KEY_LOG_RUN_ID, runID),
		logger.UintField("scheduled_task_id", scheduledTaskID),
	)
	ctx = logger.NewContext(ctx, log)

	tpl, err := s.scheduledTaskRepo.FindByID(ctx, scheduledTaskID)
	if err != nil {
		if errors.Is(err, model.ErrScheduledTaskNotFound) {
			return nil, err
		}
		log.ErrorContext(ctx, "Failed to load scheduled task", logger.ErrorField(err))
		return nil, &model.SystemicError{Op: "load scheduled task", Err: err}
	}

	date := utils.CalendarDate(asOf, s.loc)
	outcome := dto.ExecutionOutcome{
		ScheduledTaskID: tpl.ID,
		Date:            date.Format(time.DateOnly),
		Kind:            dto.OutcomeNotDue,
	}
	if !tpl.IsActive {
		outcome.Note = noteInactive
		return &outcome, nil
	}
	if !tpl.ValidOn(date) {
		outcome.Note = noteOutsideValidity
		return &outcome, nil
	}

	log.InfoContext(ctx, "Running scheduled task manually",
		logger.DateField("date", date),
		logger.BoolField("force", force),
	)
	mode := runMode{trigger: common.TRIGGER_MANUAL, force: force, runID: runID}
	outcome, err = s.safeExecute(ctx, tpl, asOf, date, mode)
	if err != nil {
		return nil, err
	}
	return &outcome, nil
}

func (s *schedulerService) List(ctx context.Context, param model.ListScheduledTaskParam) ([]model.ScheduledTask, error) {
	return s.scheduledTaskRepo.List(ctx, param)
}

func (s *schedulerService) History(ctx context.Context, scheduledTaskID uint, limit int) ([]model.ScheduledTaskExecution, error) {
	if _, err := s.scheduledTaskRepo.FindByID(ctx, scheduledTaskID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.cfg.Scheduler.HistoryLimit
	}
	param := model.ListExecutionParam{ScheduledTaskID: scheduledTaskID}
	if limit > 0 {
		param.Limit = utils.ToPointer(limit)
	}
	return s.executionRepo.ListByScheduledTask(ctx, param)
}

// safeExecute turns a panic while handling one template into a failed row so
// that it cannot take the rest of the batch down with it.
func (s *schedulerService) safeExecute(ctx context.Context, tpl *model.ScheduledTask, asOf, date time.Time, mode runMode) (outcome dto.ExecutionOutcome, err error) {
	telemetry.TemplatesInFlight.Inc()
	defer telemetry.TemplatesInFlight.Dec()

	defer func() {
		if r := recover(); r != nil {
			s.log.FromContext(ctx).ErrorContext(ctx, "Recovered panic while executing scheduled task",
				logger.UintField("scheduled_task_id", tpl.ID),
				logger.Field("panic", r),
			)
			outcome, err = s.recordFailure(ctx, tpl, asOf, date, mode,
				&model.MaterializationError{ScheduledTaskID: tpl.ID, Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	return s.execute(ctx, tpl, asOf, date, mode)
}

func (s *schedulerService) execute(ctx context.Context, tpl *model.ScheduledTask, asOf, date time.Time, mode runMode) (dto.ExecutionOutcome, error) {
	log := s.log.FromContext(ctx)
	outcome := dto.ExecutionOutcome{
		ScheduledTaskID: tpl.ID,
		Date:            date.Format(time.DateOnly),
	}

	done, err := s.executionRepo.ExistsSuccess(ctx, tpl.ID, date)
	if err != nil {
		return outcome, &model.SystemicError{Op: "check execution log", Err: err}
	}
	if done {
		if mode.trigger == common.TRIGGER_MANUAL {
			log.WarnContext(ctx, "Manual run refused, scheduled task already executed",
				logger.ErrorField(&model.IdempotencyConflictError{ScheduledTaskID: tpl.ID, Date: outcome.Date}),
			)
			return s.recordSkip(ctx, tpl, asOf, date, mode, model.NoteIdempotencyConflict)
		}
		log.DebugContext(ctx, "Scheduled task already executed",
			logger.UintField("scheduled_task_id", tpl.ID),
			logger.DateField("date", date),
		)
		outcome.Kind = dto.OutcomeAlreadyExecuted
		return outcome, nil
	}

	if tpl.RulesErr != nil {
		return s.recordFailure(ctx, tpl, asOf, date, mode, &model.EvaluationError{ScheduledTaskID: tpl.ID, Err: tpl.RulesErr})
	}

	res := Resolution{Fire: true, EffectiveDate: date, Reason: model.NoteForced}
	if !mode.force {
		res, err = s.evaluate(ctx, tpl, asOf, date, mode)
		if err != nil {
			return s.recordFailure(ctx, tpl, asOf, date, mode, &model.EvaluationError{ScheduledTaskID: tpl.ID, Err: err})
		}
		if res.NotDue() {
			outcome.Kind = dto.OutcomeNotDue
			return outcome, nil
		}
	}

	if !res.Fire {
		return s.recordSkip(ctx, tpl, asOf, date, mode, res.Reason)
	}
	return s.materialize(ctx, tpl, asOf, date, mode, res)
}

// evaluate checks the rules and the run window for date and hands the result
// to the business day resolver. Manual runs ignore the run window.
func (s *schedulerService) evaluate(ctx context.Context, tpl *model.ScheduledTask, asOf, date time.Time, mode runMode) (Resolution, error) {
	var slots []schedule.TimeOfDay
	for _, rule := range tpl.Rules {
		if s.evaluator.Matches(rule, date) {
			slots = append(slots, rule.At())
		}
	}
	ruleDue := len(slots) > 0

	if mode.trigger == common.TRIGGER_SCHEDULED {
		// A makeup day has no matching rule; it runs in the window of any rule time.
		if !ruleDue {
			for _, rule := range tpl.Rules {
				slots = append(slots, rule.At())
			}
		}
		if !s.inWindow(slots, date, asOf) {
			return Resolution{}, nil
		}
	}

	return s.resolver.Resolve(ctx, tpl, date, ruleDue)
}

// inWindow reports whether asOf falls in [date@slot, date@slot+due_window)
// for any slot. A zero window catches up on anything earlier the same day.
func (s *schedulerService) inWindow(slots []schedule.TimeOfDay, date, asOf time.Time) bool {
	window := s.cfg.Scheduler.DueWindow
	for _, slot := range slots {
		at := slot.On(date, s.loc)
		if asOf.Before(at) {
			continue
		}
		if window <= 0 || asOf.Before(at.Add(window)) {
			return true
		}
	}
	return false
}

func (s *schedulerService) materialize(ctx context.Context, tpl *model.ScheduledTask, asOf, date time.Time, mode runMode, res Resolution) (dto.ExecutionOutcome, error) {
	log := s.log.FromContext(ctx)
	note := res.Reason
	if note == model.NoteScheduled && mode.trigger == common.TRIGGER_MANUAL {
		note = model.NoteManual
	}

	row := s.newExecution(tpl, asOf, date, mode, model.ExecutionSuccess, note)
	var result MaterializeResult
	err := s.uow.Run(ctx, func(opts ...utils.DBOption) error {
		var err error
		result, err = s.materializer.Materialize(ctx, tpl, res.EffectiveDate, opts...)
		if err != nil {
			return &model.MaterializationError{ScheduledTaskID: tpl.ID, Err: err}
		}
		row.CreatedTaskID = sql.NullInt64{Int64: int64(result.CreatedTaskID), Valid: true}
		if result.DeletedTaskID != 0 {
			row.DeletedTaskID = sql.NullInt64{Int64: int64(result.DeletedTaskID), Valid: true}
		}
		return s.executionRepo.Create(ctx, row, opts...)
	})

	var matErr *model.MaterializationError
	switch {
	case err == nil:
	case errors.As(err, &matErr):
		return s.recordFailure(ctx, tpl, asOf, date, mode, matErr)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		conflict := &model.IdempotencyConflictError{ScheduledTaskID: tpl.ID, Date: date.Format(time.DateOnly)}
		log.WarnContext(ctx, "Concurrent run already materialized scheduled task", logger.ErrorField(conflict))
		return s.recordSkip(ctx, tpl, asOf, date, mode, model.NoteIdempotencyConflict)
	default:
		log.ErrorContext(ctx, "Failed to commit scheduled task execution",
			logger.UintField("scheduled_task_id", tpl.ID),
			logger.ErrorField(err),
		)
		return dto.ExecutionOutcome{}, &model.SystemicError{Op: "commit scheduled task execution", Err: err}
	}

	telemetry.ExecutionsTotal.WithLabelValues(string(model.ExecutionSuccess), note).Inc()
	log.InfoContext(ctx, "Scheduled task materialized",
		logger.UintField("scheduled_task_id", tpl.ID),
		logger.DateField("date", date),
		logger.UintField("task_id", result.CreatedTaskID),
		logger.UintField("deleted_task_id", result.DeletedTaskID),
		logger.StringField("note", note),
	)
	s.publish(ctx, tpl, date, result, note)

	return dto.ExecutionOutcome{
		ScheduledTaskID: tpl.ID,
		Date:            date.Format(time.DateOnly),
		Kind:            dto.OutcomeSuccess,
		Note:            note,
		ExecutionID:     row.ID,
		CreatedTaskID:   result.CreatedTaskID,
		DeletedTaskID:   result.DeletedTaskID,
	}, nil
}

// recordSkip writes a skipped row. A holiday skip that is already on record
// for the date is not written twice.
func (s *schedulerService) recordSkip(ctx context.Context, tpl *model.ScheduledTask, asOf, date time.Time, mode runMode, note string) (dto.ExecutionOutcome, error) {
	outcome := dto.ExecutionOutcome{
		ScheduledTaskID: tpl.ID,
		Date:            date.Format(time.DateOnly),
		Kind:            dto.OutcomeSkipped,
		Note:            note,
	}

	if note != model.NoteIdempotencyConflict {
		exists, err := s.executionRepo.ExistsWithNote(ctx, tpl.ID, date, model.ExecutionSkipped, note)
		if err != nil {
			return outcome, &model.SystemicError{Op: "check execution log", Err: err}
		}
		if exists {
			return outcome, nil
		}
	}

	row := s.newExecution(tpl, asOf, date, mode, model.ExecutionSkipped, note)
	if err := s.executionRepo.Create(ctx, row); err != nil {
		return outcome, &model.SystemicError{Op: "write skipped execution", Err: err}
	}
	telemetry.ExecutionsTotal.WithLabelValues(string(model.ExecutionSkipped), note).Inc()
	s.log.FromContext(ctx).InfoContext(ctx, "Scheduled task skipped",
		logger.UintField("scheduled_task_id", tpl.ID),
		logger.DateField("date", date),
		logger.StringField("note", note),
	)
	outcome.ExecutionID = row.ID
	return outcome, nil
}

// recordFailure writes a failed row for a per-template error. Only a failure
// to write that row escalates to the caller.
func (s *schedulerService) recordFailure(ctx context.Context, tpl *model.ScheduledTask, asOf, date time.Time, mode runMode, cause error) (dto.ExecutionOutcome, error) {
	s.log.FromContext(ctx).ErrorContext(ctx, "Scheduled task execution failed",
		logger.UintField("scheduled_task_id", tpl.ID),
		logger.DateField("date", date),
		logger.ErrorField(cause),
	)

	note := ""
	if mode.force {
		note = model.NoteForced
	}
	row := s.newExecution(tpl, asOf, date, mode, model.ExecutionFailed, note)
	row.ErrorMessage = sql.NullString{String: utils.Truncate(cause.Error(), model.MaxErrorMessageLength), Valid: true}

	outcome := dto.ExecutionOutcome{
		ScheduledTaskID: tpl.ID,
		Date:            date.Format(time.DateOnly),
		Kind:            dto.OutcomeFailed,
		Note:            note,
		Error:           row.ErrorMessage.String,
	}
	if err := s.executionRepo.Create(ctx, row); err != nil {
		return outcome, &model.SystemicError{Op: "write failed execution", Err: err}
	}
	telemetry.ExecutionsTotal.WithLabelValues(string(model.ExecutionFailed), note).Inc()
	outcome.ExecutionID = row.ID
	return outcome, nil
}

func (s *schedulerService) newExecution(tpl *model.ScheduledTask, asOf, date time.Time, mode runMode, status model.ExecutionStatus, note string) *model.ScheduledTaskExecution {
	row := &model.ScheduledTaskExecution{
		ScheduledTaskID: tpl.ID,
		ExecutionDate:   date,
		ExecutedAt:      asOf.UTC(),
		Status:          status,
		Trigger:         mode.trigger,
		RunID:           mode.runID,
	}
	if note != "" {
		row.Note = sql.NullString{String: note, Valid: true}
	}
	return row
}

// publish runs after commit; a lost event does not undo the execution.
func (s *schedulerService) publish(ctx context.Context, tpl *model.ScheduledTask, date time.Time, result MaterializeResult, note string) {
	event, err := eventbus.NewEvent(eventbus.TopicScheduledTaskMaterialized, dto.MaterializedEvent{
		TaskID:        result.CreatedTaskID,
		TemplateID:    tpl.ID,
		GroupID:       tpl.GroupID,
		ExecutionDate: date.Format(time.DateOnly),
		DeletedTaskID: result.DeletedTaskID,
		Note:          note,
	})
	if err == nil {
		err = s.publisher.Publish(ctx, event)
	}
	if err != nil {
		s.log.FromContext(ctx).WarnContext(ctx, "Failed to publish materialized event",
			logger.UintField("scheduled_task_id", tpl.ID),
			logger.ErrorField(err),
		)
	}
}
