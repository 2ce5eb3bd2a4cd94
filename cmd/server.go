package cmd

import (
	"context"
	"fmt"
	"golang-scheduled-task/internal/delivery/http"
	"golang-scheduled-task/internal/service"
	"golang-scheduled-task/pkg/logger"
	"golang-scheduled-task/pkg/utils"
	"log"
	httpNet "net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the HTTP API and the periodic batch trigger",
	Run:   Start,
}

func Start(cmd *cobra.Command, args []string) {

	// Create a context that is canceled on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appDep, err := NewAppDependency(ctx)
	if err != nil {
		log.Fatalf("Failed to create app dependency: %v", err)
	}

	_, services, err := appDep.Services()
	if err != nil {
		log.Fatalf("Failed to create services: %v", err)
	}

	trigger, err := newBatchTrigger(ctx, appDep, services.SchedulerService)
	if err != nil {
		log.Fatalf("Failed to create batch trigger: %v", err)
	}

	httpHandler := http.NewHttpAPIHandler(ctx, appDep.echo, appDep.validator, services)
	apiServer := NewHTTPServer(ctx, appDep, httpHandler)
	go func() {
		if err := apiServer.Start(); err != nil && err != httpNet.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	trigger.Start()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Println("Shutting down gracefully...")

	// Stop returns once any in-flight batch has finished.
	<-trigger.Stop().Done()
	appDep.log.Info("Batch trigger stopped")

	if err := apiServer.Stop(); err != nil {
		log.Fatalf("Failed to stop HTTP server: %v", err)
	}

	if err := appDep.Close(); err != nil {
		log.Fatalf("Failed to close app dependency: %v", err)
	}
}

// newBatchTrigger schedules RunBatch on scheduler.cron in the scheduler
// timezone. A tick that fires while the previous batch is still running is
// skipped.
func newBatchTrigger(ctx context.Context, appDep *AppDependency, scheduler service.SchedulerService) (*cron.Cron, error) {
	spec := appDep.cfg.Scheduler.Cron
	if err := service.ValidateCronSpec(spec); err != nil {
		return nil, err
	}

	cronLog := cronLogger{log: appDep.log}
	c := cron.New(
		cron.WithLocation(scheduler.Location()),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	_, err := c.AddFunc(spec, func() {
		asOf := utils.TimeNowIn(scheduler.Location())
		if _, err := scheduler.RunBatch(ctx, asOf); err != nil {
			appDep.log.ErrorContext(ctx, "Scheduled batch aborted", logger.ErrorField(err), logger.TimeField("as_of", asOf))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler cron %q: %w", spec, err)
	}
	appDep.log.Info("Batch trigger configured",
		zap.String("cron", spec),
		zap.String("timezone", scheduler.Location().String()),
	)
	return c, nil
}

// cronLogger routes robfig/cron's own logging through the application logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, zap.Any("details", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}
