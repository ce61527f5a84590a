package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"

	"github.com/edvin/warehouse/internal/activity"
	"github.com/edvin/warehouse/internal/config"
	"github.com/edvin/warehouse/internal/db"
	"github.com/edvin/warehouse/internal/logging"
	"github.com/edvin/warehouse/internal/metrics"
	"github.com/edvin/warehouse/internal/platform"
	"github.com/edvin/warehouse/internal/storage"
	"github.com/edvin/warehouse/internal/warehouse"
	"github.com/edvin/warehouse/internal/workflow"
)

const taskQueue = "warehouse-tasks"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("worker"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	if err := run(cfg, logger); err != nil {
		logger.Error().Err(err).Msg("worker exited")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	corePool, err := db.NewCorePool(ctx, cfg.CoreDatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to core database: %w", err)
	}
	defer corePool.Close()

	if err := metrics.RegisterPoolMetrics(prometheus.DefaultRegisterer, corePool); err != nil {
		return fmt.Errorf("register pool metrics: %w", err)
	}

	awsCfg, err := platform.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}

	tc, err := temporalclient.Dial(temporalclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		return fmt.Errorf("connect to temporal: %w", err)
	}
	defer tc.Close()

	w := worker.New(tc, taskQueue, worker.Options{
		Interceptors: []interceptor.WorkerInterceptor{&workflow.ActivityErrorInterceptor{}},
	})

	// Register activities
	w.RegisterActivity(activity.NewCoreDB(corePool))

	uploader := storage.NewUploader(storage.NewS3Client(awsCfg, cfg.S3Endpoint), logger).
		WithRoot(cfg.ArtifactRoot)
	w.RegisterActivity(activity.NewWarehouse(
		warehouse.NewRedshiftClient(awsCfg),
		uploader,
		db.OpenWarehouse,
		activity.WarehouseConfig{
			NodeType:           cfg.NodeType,
			NodeCount:          cfg.NodeCount,
			PubliclyAccessible: cfg.PubliclyAccessible,
			DatabaseName:       cfg.DatabaseName,
			Port:               cfg.Port,
			MasterUsername:     cfg.MasterUsername,
			MasterPassword:     cfg.MasterPassword,
			IAMRoleARN:         cfg.IAMRoleARN,
			Region:             cfg.AWSRegion,
			Driver:             cfg.WarehouseDriver,
			IgnoreHeader:       cfg.LoadIgnoreHeader,
			MaxErrors:          cfg.LoadMaxErrors,
			ReuseExisting:      cfg.ReuseExisting,
		},
		logger,
	))

	// Register workflows
	w.RegisterWorkflow(workflow.LoadWarehouseWorkflow)
	w.RegisterWorkflow(workflow.CleanupLoadRunsWorkflow)

	if cfg.MetricsListenAddr != "" {
		metricsSrv := metrics.NewServer(cfg.MetricsListenAddr, corePool.Ping)
		go func() {
			logger.Info().Str("addr", cfg.MetricsListenAddr).Msg("starting metrics server")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
		defer metricsSrv.Close()
	}

	// Errors for already-existing schedules are ignored so that re-deploys
	// do not fail.
	if err := registerCronSchedules(ctx, tc, cfg, logger); err != nil {
		return err
	}

	logger.Info().Str("taskQueue", taskQueue).Msg("starting temporal worker")
	if err := w.Run(worker.InterruptCh()); err != nil {
		return fmt.Errorf("run worker: %w", err)
	}

	logger.Info().Msg("shutting down worker")
	return nil
}

type cronSchedule struct {
	id       string
	cron     string
	workflow interface{}
	args     []interface{}
}

func registerCronSchedules(ctx context.Context, tc temporalclient.Client, cfg *config.Config, logger zerolog.Logger) error {
	schedules := []cronSchedule{
		{
			id:       "load-run-retention-cron",
			cron:     "0 4 * * *",
			workflow: workflow.CleanupLoadRunsWorkflow,
			args:     []interface{}{cfg.LoadRunRetentionDays},
		},
	}

	scheduleClient := tc.ScheduleClient()

	for _, s := range schedules {
		_, err := scheduleClient.Create(ctx, temporalclient.ScheduleOptions{
			ID: s.id,
			Spec: temporalclient.ScheduleSpec{
				CronExpressions: []string{s.cron},
			},
			Action: &temporalclient.ScheduleWorkflowAction{
				ID:        s.id,
				Workflow:  s.workflow,
				Args:      s.args,
				TaskQueue: taskQueue,
			},
		})
		switch {
		case err == nil:
			logger.Info().Str("id", s.id).Str("cron", s.cron).Msg("created cron schedule")
		case errors.Is(err, temporal.ErrScheduleAlreadyRunning):
			logger.Info().Str("id", s.id).Msg("cron schedule already exists, skipping")
		default:
			return fmt.Errorf("create cron schedule %s: %w", s.id, err)
		}
	}
	return nil
}
