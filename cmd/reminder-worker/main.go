package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/reminder"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.Env, cfg.LogLevel)
	calendar.SetLocation(cfg.Location())

	if cfg.StorageDriver != config.StoragePostgres {
		logger.Fatal().Str("storage", cfg.StorageDriver).Msg("reminder-worker needs STORAGE_DRIVER=postgres")
	}

	logger.Info().
		Str("env", cfg.Env).
		Str("schedule", cfg.ReminderCron).
		Int("batch", cfg.ReminderBatch).
		Msg("reminder-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.PgMaxConns)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	var notifier reminder.Notifier = reminder.NewLogNotifier(logger)
	if cfg.NotifyQueueURL != "" {
		sqsNotifier, err := reminder.NewSQSNotifier(rootCtx, cfg.NotifyQueueURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqs notifier setup error")
		}
		notifier = sqsNotifier
		logger.Info().Str("queue_url", cfg.NotifyQueueURL).Msg("publishing reminders to SQS")
	}

	dispatcher := reminder.NewDispatcher(
		appointment.NewPgRepository(pgPool),
		notifier,
		calendar.SystemClock{},
		cfg.ReminderBatch,
		logger,
	)

	// Run once at startup
	runOnce(rootCtx, logger, dispatcher)

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(cfg.ReminderCron, func() { runOnce(rootCtx, logger, dispatcher) }); err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.ReminderCron).Msg("invalid REMINDER_SCHEDULE")
	}
	c.Start()

	<-rootCtx.Done()
	logger.Info().Msg("shutdown signal received, stopping reminder worker")
	<-c.Stop().Done()
}

func runOnce(ctx context.Context, logger zerolog.Logger, d *reminder.Dispatcher) {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	start := time.Now()
	sent, err := d.RunOnce(runCtx)
	if err != nil {
		logger.Error().Err(err).Msg("reminder run error")
		return
	}
	logger.Info().Int("sent", sent).Dur("took", time.Since(start)).Msg("reminder run complete")
}
