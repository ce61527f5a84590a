package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/edvin/warehouse/internal/config"
	"github.com/edvin/warehouse/internal/db"
	"github.com/edvin/warehouse/internal/loader"
	"github.com/edvin/warehouse/internal/logging"
	"github.com/edvin/warehouse/internal/metrics"
	"github.com/edvin/warehouse/internal/model"
	"github.com/edvin/warehouse/internal/platform"
	"github.com/edvin/warehouse/internal/storage"
	"github.com/edvin/warehouse/internal/warehouse"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("redshift-load"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	if err := run(cfg, logger); err != nil {
		logger.Error().Err(err).Msg("load failed")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := platform.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}

	if cfg.MetricsListenAddr != "" {
		metricsSrv := metrics.NewServer(cfg.MetricsListenAddr, nil)
		go func() {
			logger.Info().Str("addr", cfg.MetricsListenAddr).Msg("starting metrics server")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
		defer metricsSrv.Close()
	}

	uploader := storage.NewUploader(storage.NewS3Client(awsCfg, cfg.S3Endpoint), logger)
	pipeline := loader.NewPipeline(warehouse.NewRedshiftClient(awsCfg), uploader, db.OpenWarehouse, logger)

	var roles []string
	if cfg.IAMRoleARN != "" {
		roles = []string{cfg.IAMRoleARN}
	}

	result, err := pipeline.Run(ctx, loader.Options{
		Cluster: warehouse.ClusterSpec{
			Identifier:         cfg.ClusterIdentifier,
			NodeType:           cfg.NodeType,
			NumberOfNodes:      cfg.NodeCount,
			MasterUsername:     cfg.MasterUsername,
			MasterPassword:     cfg.MasterPassword,
			DatabaseName:       cfg.DatabaseName,
			Port:               cfg.Port,
			PubliclyAccessible: cfg.PubliclyAccessible,
			IAMRoles:           roles,
		},
		ReuseExisting: cfg.ReuseExisting,
		Wait: warehouse.WaiterOptions{
			Delay:       cfg.WaitDelay,
			MaxAttempts: cfg.WaitMaxAttempts,
		},
		Driver: cfg.WarehouseDriver,
		Artifact: model.LoadArtifact{
			LocalPath: cfg.LoadFile,
			Bucket:    cfg.LoadBucket,
			Key:       cfg.LoadKey,
		},
		IAMRoleARN:   cfg.IAMRoleARN,
		Region:       cfg.AWSRegion,
		IgnoreHeader: cfg.LoadIgnoreHeader,
		MaxErrors:    cfg.LoadMaxErrors,
	})
	if err != nil {
		return err
	}

	logger.Info().
		Str("cluster_status", string(result.ClusterStatus)).
		Int64("rows", result.Rows).
		Int("load_errors", len(result.LoadErrors)).
		Bool("load_errors_checked", result.LoadErrorsChecked).
		Msg("load complete")
	return nil
}
