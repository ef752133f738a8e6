// main package for the narration-service daemon
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/book-expert/narration-pipeline/internal/app"
	"github.com/book-expert/narration-pipeline/internal/config"
	"github.com/book-expert/narration-pipeline/internal/pipeline"
	"github.com/book-expert/narration-pipeline/internal/scheduler"
	"github.com/book-expert/narration-pipeline/internal/worker"
)

const (
	jobVerify      = "verify"
	jobPregenerate = "pregenerate"
	jobStartup     = "startup-pregenerate"
)

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger in %s: %w", logPath, err)
	}

	return log, nil
}

func run(ctx context.Context) error {
	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir(), "narration-service-bootstrap.log")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	bootstrapLog.Info("Bootstrap logger created.")

	// 2. Load configuration using the central configurator
	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	// 3. Initialize the final logger based on the loaded configuration
	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir, "narration-service.log")
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	// 4. Wire the pipeline
	application, err := app.Build(ctx, cfg, finalLog)
	if err != nil {
		finalLog.Error("Failed to initialize pipeline: %v", err)

		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	defer application.Close()

	sched := newScheduler(application, finalLog)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return sched.Run(groupCtx) })

	if application.NATS != nil && cfg.NATS.TriggerSubject != "" {
		trigger := worker.NewNatsWorker(
			application.NATS,
			cfg.NATS.TriggerSubject,
			application.Generator,
			application.Verifier,
			application.Lock,
			cfg.Generation.LeadDays,
			finalLog,
		)

		group.Go(func() error { return trigger.Run(groupCtx) })
	}

	for name, next := range sched.Next() {
		finalLog.System("Job %s first run at %s", name, next)
	}

	finalLog.System("Narration service started in zone %s.", cfg.Civic.Zone)

	err = group.Wait()
	if err != nil {
		finalLog.Error("Narration service stopped with error: %v", err)

		return err
	}

	finalLog.System("Narration service stopped.")

	return nil
}

func newScheduler(application *app.App, log *logger.Logger) *scheduler.Scheduler {
	cfg := application.Config

	pregenerate := func(ctx context.Context) {
		logResult(log, jobPregenerate, application.Generator.GenerateWindow(ctx, cfg.Generation.LeadDays))
	}

	sched := scheduler.New(application.Clock, application.Lock, log,
		scheduler.Job{
			Name: jobVerify,
			At:   cfg.Schedule.Verification,
			Run: func(ctx context.Context) {
				logReport(log, application.Verifier.Verify(ctx))
			},
		},
		scheduler.Job{Name: jobPregenerate, At: cfg.Schedule.Pregeneration, Run: pregenerate},
	)

	if cfg.Schedule.RunOnStart {
		sched.RunOnStart(jobStartup, pregenerate)
	}

	return sched
}

func logResult(log *logger.Logger, job string, result pipeline.Result) {
	log.Info("Job %s run %s: total=%d generated=%d skipped=%d failed=%d",
		job, result.RunID, result.Total, result.Generated, result.Skipped, result.Failed)

	for _, message := range result.Errors {
		log.Error("Job %s run %s: %s", job, result.RunID, message)
	}
}

func logReport(log *logger.Logger, report pipeline.Report) {
	log.Info("Job %s run %s: checked=%d ready=%d missing=%d repaired=%d",
		jobVerify, report.RunID, report.Checked, report.Ready, report.Missing, report.Repaired)

	if report.NeedsAttention() {
		log.Error("CRITICAL: %d scheduled items have no narration after repair; manual follow-up required",
			len(report.FailedRepairs))
	}
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
