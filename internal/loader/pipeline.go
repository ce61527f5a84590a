package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/warehouse/internal/metrics"
	"github.com/edvin/warehouse/internal/model"
	"github.com/edvin/warehouse/internal/warehouse"
)

// Uploader puts a load artifact into the object store.
type Uploader interface {
	Upload(ctx context.Context, artifact model.LoadArtifact) error
}

// OpenFunc opens a warehouse connection for a descriptor.
type OpenFunc func(ctx context.Context, conn model.ConnectionDescriptor) (*sql.DB, error)

// Options configure one pipeline run.
type Options struct {
	Cluster       warehouse.ClusterSpec
	ReuseExisting bool
	Wait          warehouse.WaiterOptions

	Driver       string
	Artifact     model.LoadArtifact
	IAMRoleARN   string
	Region       string
	IgnoreHeader int
	MaxErrors    int
}

// Result summarizes a finished load.
type Result struct {
	ClusterStatus model.ClusterStatus
	Connection    model.ConnectionDescriptor
	Rows          int64
	Sales         []model.Sale
	LoadErrors    []model.LoadError
	// LoadErrorsChecked is false when the stl_load_errors query failed.
	LoadErrorsChecked bool
}

// Pipeline provisions a cluster, waits for it and loads one artifact.
type Pipeline struct {
	redshift warehouse.RedshiftAPI
	uploader Uploader
	open     OpenFunc
	logger   zerolog.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(redshift warehouse.RedshiftAPI, uploader Uploader, open OpenFunc, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		redshift: redshift,
		uploader: uploader,
		open:     open,
		logger:   logger.With().Str("component", "pipeline").Logger(),
	}
}

// Run creates the cluster, waits until it is available and then loads the
// artifact. An existing cluster is an error unless ReuseExisting is set.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()
	result, err := p.run(ctx, opts)

	var rows, loadErrors int
	if result != nil {
		rows = int(result.Rows)
		loadErrors = len(result.LoadErrors)
	}
	metrics.ObserveLoad(rows, loadErrors, time.Since(start).Seconds(), err)
	return result, err
}

func (p *Pipeline) run(ctx context.Context, opts Options) (*Result, error) {
	status, err := warehouse.NewProvisioner(p.redshift, p.logger).Create(ctx, opts.Cluster)
	metrics.ObserveProvision(err)
	switch {
	case err == nil:
		p.logger.Info().Str("cluster", opts.Cluster.Identifier).Str("status", string(status)).Msg("cluster requested")
	case errors.Is(err, warehouse.ErrClusterExists) && opts.ReuseExisting:
		p.logger.Warn().Str("cluster", opts.Cluster.Identifier).Msg("cluster already exists, reusing it")
	default:
		return nil, err
	}

	cluster, err := warehouse.NewWaiter(p.redshift, p.logger, opts.Wait).Wait(ctx, opts.Cluster.Identifier)
	if err != nil {
		return nil, err
	}

	result, err := p.Load(ctx, opts)
	if result != nil {
		result.ClusterStatus = cluster.Status
	}
	return result, err
}

// Load runs the load against a cluster that is already available: resolve
// the endpoint, recreate the table, upload, COPY, read back the rows and
// finally the load errors. Only the load-error query may fail without
// failing the load.
func (p *Pipeline) Load(ctx context.Context, opts Options) (*Result, error) {
	identifier := opts.Cluster.Identifier

	endpoint, err := warehouse.ResolveEndpoint(ctx, p.redshift, identifier)
	if err != nil {
		return nil, err
	}
	conn := warehouse.Connection(endpoint, opts.Driver, opts.Cluster.DatabaseName,
		opts.Cluster.MasterUsername, opts.Cluster.MasterPassword)
	p.logger.Info().Str("cluster", identifier).Stringer("connection", conn).Msg("cluster endpoint resolved")

	db, err := p.open(ctx, conn)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	wh := NewWarehouse(db, p.logger)
	if err := wh.RecreateTable(ctx); err != nil {
		return nil, err
	}

	if err := p.uploader.Upload(ctx, opts.Artifact); err != nil {
		return nil, err
	}

	result := &Result{Connection: conn}

	if err := wh.Copy(ctx, CopyOptions{
		Artifact:     opts.Artifact,
		IAMRoleARN:   opts.IAMRoleARN,
		Region:       opts.Region,
		IgnoreHeader: opts.IgnoreHeader,
		MaxErrors:    opts.MaxErrors,
	}); err != nil {
		p.checkLoadErrors(ctx, wh, result)
		return result, &CopyError{
			Source:     opts.Artifact.S3URI(),
			LoadErrors: result.LoadErrors,
			Err:        err,
		}
	}

	result.Sales, err = wh.ListSales(ctx)
	if err != nil {
		return nil, fmt.Errorf("read back sales: %w", err)
	}
	result.Rows = int64(len(result.Sales))
	for _, s := range result.Sales {
		p.logger.Info().
			Int64("order_id", s.OrderID).
			Int64("product_id", s.ProductID).
			Int64("quantity", s.Quantity).
			Str("price", s.Price).
			Msg("sale")
	}

	p.checkLoadErrors(ctx, wh, result)

	p.logger.Info().
		Str("cluster", identifier).
		Int64("rows", result.Rows).
		Int("load_errors", len(result.LoadErrors)).
		Msg("load finished")
	return result, nil
}

// checkLoadErrors fills in the load errors of result. A failed query is
// logged and leaves LoadErrorsChecked false.
func (p *Pipeline) checkLoadErrors(ctx context.Context, wh *Warehouse, result *Result) {
	loadErrors, err := wh.ListLoadErrors(ctx)
	if err != nil {
		p.logger.Warn().Err(err).Msg("could not query load errors")
		return
	}
	result.LoadErrors = loadErrors
	result.LoadErrorsChecked = true
	for _, le := range loadErrors {
		p.logger.Warn().
			Str("filename", le.Filename).
			Int64("line", le.LineNumber).
			Str("column", le.ColName).
			Str("value", le.RawFieldValue).
			Int64("code", le.ErrCode).
			Str("reason", le.ErrReason).
			Msg("load error")
	}
}
