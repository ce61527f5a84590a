package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/edvin/warehouse/internal/model"
	"github.com/edvin/warehouse/internal/platform"
	"github.com/edvin/warehouse/internal/workflow"
)

var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

var loadRunColumns = []string{
	"id", "cluster_identifier", "bucket", "key", "local_path", "status", "status_message", "cluster_status",
	"rows_loaded", "load_errors", "load_errors_checked", "created_at", "updated_at",
}

// WaitOptions bounds the availability poll of every run started by the
// service. Zero values use the workflow defaults.
type WaitOptions struct {
	Delay       time.Duration
	MaxAttempts int
}

type LoadRunService struct {
	db   DB
	tc   temporalclient.Client
	wait WaitOptions
}

func NewLoadRunService(db DB, tc temporalclient.Client, wait WaitOptions) *LoadRunService {
	return &LoadRunService{db: db, tc: tc, wait: wait}
}

// Create records the run and starts its LoadWarehouseWorkflow. A cluster with
// a run still in flight yields ErrRunInProgress. If the workflow cannot be
// started the run is marked failed so it no longer blocks the cluster.
func (s *LoadRunService) Create(ctx context.Context, run *model.LoadRun) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO load_runs (id, cluster_identifier, bucket, key, local_path, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.ClusterIdentifier, run.Bucket, run.Key, run.LocalPath, run.Status, run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("cluster %s: %w", run.ClusterIdentifier, ErrRunInProgress)
		}
		return fmt.Errorf("insert load run: %w", err)
	}

	err = startWorkflow(ctx, s.tc, model.ProvisionTask{
		WorkflowName: "LoadWarehouseWorkflow",
		WorkflowID:   platform.WorkflowID("load-run", run.ID),
		Arg: workflow.LoadWarehouseParams{
			RunID:           run.ID,
			WaitDelay:       s.wait.Delay,
			WaitMaxAttempts: s.wait.MaxAttempts,
		},
	})
	if err != nil {
		msg := fmt.Sprintf("start workflow: %v", err)
		if _, uerr := s.db.Exec(ctx,
			`UPDATE load_runs SET status = $1, status_message = $2, updated_at = now() WHERE id = $3`,
			model.StatusFailed, msg, run.ID,
		); uerr != nil {
			return fmt.Errorf("start LoadWarehouseWorkflow: %w", errors.Join(err, uerr))
		}
		run.Status = model.StatusFailed
		run.StatusMessage = &msg
		return fmt.Errorf("start LoadWarehouseWorkflow: %w", err)
	}

	return nil
}

func (s *LoadRunService) GetByID(ctx context.Context, id string) (*model.LoadRun, error) {
	query, args, err := psq.Select(loadRunColumns...).From("load_runs").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build load run query: %w", err)
	}

	r, err := scanLoadRun(s.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("load run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get load run %s: %w", id, err)
	}
	return r, nil
}

// ListParams filters List. Empty fields match everything.
type ListParams struct {
	ClusterIdentifier string
	Status            string
	Limit             int
}

// List returns runs newest first.
func (s *LoadRunService) List(ctx context.Context, params ListParams) ([]model.LoadRun, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	b := psq.Select(loadRunColumns...).From("load_runs")
	if params.ClusterIdentifier != "" {
		b = b.Where(sq.Eq{"cluster_identifier": params.ClusterIdentifier})
	}
	if params.Status != "" {
		b = b.Where(sq.Eq{"status": params.Status})
	}
	query, args, err := b.OrderBy("created_at DESC", "id").Limit(uint64(limit)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build load run list query: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list load runs: %w", err)
	}
	defer rows.Close()

	runs := []model.LoadRun{}
	for rows.Next() {
		r, err := scanLoadRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan load run: %w", err)
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate load runs: %w", err)
	}
	return runs, nil
}

func scanLoadRun(row pgx.Row) (*model.LoadRun, error) {
	var r model.LoadRun
	err := row.Scan(&r.ID, &r.ClusterIdentifier, &r.Bucket, &r.Key, &r.LocalPath, &r.Status, &r.StatusMessage, &r.ClusterStatus,
		&r.RowsLoaded, &r.LoadErrors, &r.LoadErrorsChecked, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
