package activity

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.temporal.io/sdk/temporal"

	"github.com/edvin/warehouse/internal/loader"
	"github.com/edvin/warehouse/internal/model"
	"github.com/edvin/warehouse/internal/storage"
	"github.com/edvin/warehouse/internal/warehouse"
)

// WarehouseConfig holds the cluster settings shared by every load run the
// worker executes.
type WarehouseConfig struct {
	NodeType           string
	NodeCount          int32
	PubliclyAccessible bool
	DatabaseName       string
	Port               int32
	MasterUsername     string
	MasterPassword     string
	IAMRoleARN         string
	Region             string
	Driver             string
	IgnoreHeader       int
	MaxErrors          int
	ReuseExisting      bool
}

// Warehouse contains activities that provision a Redshift cluster and load
// artifacts into it. Credentials stay in the worker and never enter
// workflow history.
type Warehouse struct {
	redshift warehouse.RedshiftAPI
	uploader loader.Uploader
	open     loader.OpenFunc
	cfg      WarehouseConfig
	logger   zerolog.Logger
}

// NewWarehouse creates a new Warehouse activity struct.
func NewWarehouse(redshift warehouse.RedshiftAPI, uploader loader.Uploader, open loader.OpenFunc, cfg WarehouseConfig, logger zerolog.Logger) *Warehouse {
	return &Warehouse{
		redshift: redshift,
		uploader: uploader,
		open:     open,
		cfg:      cfg,
		logger:   logger.With().Str("component", "warehouse-activity").Logger(),
	}
}

// CreateClusterResult is returned by CreateCluster.
type CreateClusterResult struct {
	Status  model.ClusterStatus `json:"status"`
	Existed bool                `json:"existed"`
}

// CreateCluster requests a new cluster. A duplicate identifier is
// non-retryable unless the worker is configured to reuse clusters.
func (a *Warehouse) CreateCluster(ctx context.Context, identifier string) (*CreateClusterResult, error) {
	status, err := warehouse.NewProvisioner(a.redshift, a.logger).Create(ctx, warehouse.ClusterSpec{
		Identifier:         identifier,
		NodeType:           a.cfg.NodeType,
		NumberOfNodes:      a.cfg.NodeCount,
		MasterUsername:     a.cfg.MasterUsername,
		MasterPassword:     a.cfg.MasterPassword,
		DatabaseName:       a.cfg.DatabaseName,
		Port:               a.cfg.Port,
		PubliclyAccessible: a.cfg.PubliclyAccessible,
		IAMRoles:           iamRoles(a.cfg.IAMRoleARN),
	})
	if err != nil {
		if errors.Is(err, warehouse.ErrClusterExists) {
			if a.cfg.ReuseExisting {
				a.logger.Warn().Str("cluster", identifier).Msg("cluster already exists, reusing it")
				return &CreateClusterResult{Existed: true}, nil
			}
			return nil, temporal.NewNonRetryableApplicationError(err.Error(), "ClusterAlreadyExists", err)
		}
		return nil, err
	}
	return &CreateClusterResult{Status: status}, nil
}

// DescribeClusterStatus returns the current status of a cluster.
func (a *Warehouse) DescribeClusterStatus(ctx context.Context, identifier string) (model.ClusterStatus, error) {
	cluster, err := warehouse.Describe(ctx, a.redshift, identifier)
	if err != nil {
		return "", err
	}
	return cluster.Status, nil
}

// ResolveConnection returns the connection descriptor of an available
// cluster. The password is not serialized, so the descriptor can be passed
// through workflow history to the SQL activities.
func (a *Warehouse) ResolveConnection(ctx context.Context, identifier string) (*model.ConnectionDescriptor, error) {
	endpoint, err := warehouse.ResolveEndpoint(ctx, a.redshift, identifier)
	if err != nil {
		return nil, err
	}
	conn := warehouse.Connection(endpoint, a.cfg.Driver, a.cfg.DatabaseName, a.cfg.MasterUsername, "")
	return &conn, nil
}

// RecreateTable drops and recreates the sales table.
func (a *Warehouse) RecreateTable(ctx context.Context, conn model.ConnectionDescriptor) error {
	return a.withWarehouse(ctx, conn, func(wh *loader.Warehouse) error {
		return wh.RecreateTable(ctx)
	})
}

// UploadArtifact uploads the run's file to S3. Authentication failures and
// paths outside the artifact root are non-retryable.
func (a *Warehouse) UploadArtifact(ctx context.Context, artifact model.LoadArtifact) error {
	err := a.uploader.Upload(ctx, artifact)
	switch {
	case errors.Is(err, storage.ErrAuthentication):
		return temporal.NewNonRetryableApplicationError(err.Error(), "S3Authentication", err)
	case errors.Is(err, storage.ErrInvalidPath):
		return temporal.NewNonRetryableApplicationError(err.Error(), "InvalidArtifactPath", err)
	}
	return err
}

// CopyArtifactParams holds the parameters for CopyArtifact.
type CopyArtifactParams struct {
	Connection model.ConnectionDescriptor `json:"connection"`
	Artifact   model.LoadArtifact         `json:"artifact"`
}

// CopyArtifact runs COPY for the artifact and returns the row count of the
// sales table afterwards. A rejected COPY is non-retryable.
func (a *Warehouse) CopyArtifact(ctx context.Context, params CopyArtifactParams) (int64, error) {
	var rows int64
	err := a.withWarehouse(ctx, params.Connection, func(wh *loader.Warehouse) error {
		if err := wh.Copy(ctx, loader.CopyOptions{
			Artifact:     params.Artifact,
			IAMRoleARN:   a.cfg.IAMRoleARN,
			Region:       a.cfg.Region,
			IgnoreHeader: a.cfg.IgnoreHeader,
			MaxErrors:    a.cfg.MaxErrors,
		}); err != nil {
			return temporal.NewNonRetryableApplicationError(err.Error(), "CopyFailed", err)
		}
		var err error
		rows, err = wh.CountRows(ctx)
		return err
	})
	return rows, err
}

// ListSales returns the rows of the sales table.
func (a *Warehouse) ListSales(ctx context.Context, conn model.ConnectionDescriptor) ([]model.Sale, error) {
	var sales []model.Sale
	err := a.withWarehouse(ctx, conn, func(wh *loader.Warehouse) error {
		var err error
		sales, err = wh.ListSales(ctx)
		return err
	})
	return sales, err
}

// ListLoadErrors returns the stl_load_errors rows for the sales table.
func (a *Warehouse) ListLoadErrors(ctx context.Context, conn model.ConnectionDescriptor) ([]model.LoadError, error) {
	var loadErrors []model.LoadError
	err := a.withWarehouse(ctx, conn, func(wh *loader.Warehouse) error {
		var err error
		loadErrors, err = wh.ListLoadErrors(ctx)
		return err
	})
	return loadErrors, err
}

// withWarehouse opens the warehouse with the worker's master password. The
// descriptor arrives from workflow history without one.
func (a *Warehouse) withWarehouse(ctx context.Context, conn model.ConnectionDescriptor, fn func(wh *loader.Warehouse) error) error {
	conn.Password = a.cfg.MasterPassword
	db, err := a.open(ctx, conn)
	if err != nil {
		return fmt.Errorf("connect to warehouse %s: %w", conn, err)
	}
	defer db.Close()

	return fn(loader.NewWarehouse(db, a.logger))
}

func iamRoles(arn string) []string {
	if arn == "" {
		return nil
	}
	return []string{arn}
}
