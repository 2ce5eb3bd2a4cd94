package service

import (
	"golang-scheduled-task/config"
	"golang-scheduled-task/internal/repository"
	"golang-scheduled-task/internal/schedule"
	"golang-scheduled-task/pkg/eventbus"
	"golang-scheduled-task/pkg/logger"
	"golang-scheduled-task/pkg/utils"

	goValidator "github.com/go-playground/validator/v10"
)

type Service struct {
	SchedulerService     SchedulerService
	ScheduledTaskService ScheduledTaskService
}

func NewService(
	cfg *config.Config,
	log *logger.Logger,
	repo *repository.Repository,
	validator *goValidator.Validate,
	publisher eventbus.Publisher,
) (*Service, error) {
	monthlyPolicy, err := schedule.ParseMonthlyDayPolicy(cfg.Scheduler.MonthlyDayPolicy)
	if err != nil {
		return nil, err
	}
	makeupPolicy, err := ParseMakeupPolicy(cfg.Scheduler.MakeupPolicy)
	if err != nil {
		return nil, err
	}

	loc := utils.MustLoadLocation(cfg.Scheduler.Timezone)
	evaluator := schedule.NewEvaluator(monthlyPolicy)
	resolver := NewBusinessDayResolver(log, repo.HolidayCalendar, repo.ExecutionRepo, evaluator, makeupPolicy, cfg.Scheduler.MakeupLookaheadDays)
	materializer := NewTaskMaterializer(log, loc, repo.TaskService)

	schedulerService := NewSchedulerService(
		cfg,
		log,
		loc,
		evaluator,
		resolver,
		materializer,
		repo.ScheduledTaskRepo,
		repo.ExecutionRepo,
		repo.UnitOfWork,
		publisher,
	)
	return &Service{
		SchedulerService:     schedulerService,
		ScheduledTaskService: NewScheduledTaskService(log, validator, repo.ScheduledTaskRepo),
	}, nil
}
