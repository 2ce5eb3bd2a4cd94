package cmd

import (
	"context"
	"golang-scheduled-task/config"
	"golang-scheduled-task/internal/repository"
	"golang-scheduled-task/internal/service"
	"golang-scheduled-task/pkg/cache"
	"golang-scheduled-task/pkg/eventbus"
	"golang-scheduled-task/pkg/logger"
	"golang-scheduled-task/pkg/postgres"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type AppDependency struct {
	db        *postgres.DB
	cfg       *config.Config
	log       *logger.Logger
	validator *goValidator.Validate
	echo      *echo.Echo
	cache     cache.Cache
	publisher eventbus.Publisher
}

func NewAppDependency(ctx context.Context) (*AppDependency, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		return nil, err
	}

	db, err := postgres.NewDB(cfg.DB, log)
	if err != nil {
		log.Error("Failed to connect to database", zap.Error(err))
		return nil, err
	}

	publisher, err := eventbus.New(cfg.Event.Driver, cfg.Redis.URL, cfg.Event.Channel, log)
	if err != nil {
		log.Error("Failed to create event publisher", zap.Error(err), zap.String("driver", cfg.Event.Driver))
		_ = db.Close()
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	return &AppDependency{
		cfg:       cfg,
		log:       log,
		validator: goValidator.New(),
		db:        db,
		echo:      e,
		cache:     cache.NewCache(cfg.Cache.DefaultExpiration, cfg.Cache.CleanupInterval),
		publisher: publisher,
	}, nil
}

// Services builds the repository and service layers on top of the dependencies.
func (d *AppDependency) Services() (*repository.Repository, *service.Service, error) {
	repo, err := repository.NewRepository(d.cfg, d.cache, d.db.DB, d.log)
	if err != nil {
		return nil, nil, err
	}
	services, err := service.NewService(d.cfg, d.log, repo, d.validator, d.publisher)
	if err != nil {
		return nil, nil, err
	}
	return repo, services, nil
}

func (d *AppDependency) Close() error {
	d.log.Info("Closing app dependency")
	if d.publisher != nil {
		if err := d.publisher.Close(); err != nil {
			d.log.Warn("Failed to close event publisher", zap.Error(err))
		}
	}
	var err error
	if d.db != nil {
		err = d.db.Close()
	}
	_ = d.log.Sync()
	return err
}
