package activity

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/edvin/warehouse/internal/model"
)

// DB defines the database operations used by activity structs.
// *pgxpool.Pool satisfies this interface.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CoreDB contains activities that read from and update the control database.
type CoreDB struct {
	db DB
}

// NewCoreDB creates a new CoreDB activity struct.
func NewCoreDB(db DB) *CoreDB {
	return &CoreDB{db: db}
}

const loadRunColumns = `id, cluster_identifier, bucket, key, local_path, status, status_message, cluster_status,
	rows_loaded, load_errors, load_errors_checked, created_at, updated_at`

// GetLoadRun retrieves a load run by its ID.
func (a *CoreDB) GetLoadRun(ctx context.Context, id string) (*model.LoadRun, error) {
	var r model.LoadRun
	err := a.db.QueryRow(ctx,
		`SELECT `+loadRunColumns+` FROM load_runs WHERE id = $1`, id,
	).Scan(&r.ID, &r.ClusterIdentifier, &r.Bucket, &r.Key, &r.LocalPath, &r.Status, &r.StatusMessage, &r.ClusterStatus,
		&r.RowsLoaded, &r.LoadErrors, &r.LoadErrorsChecked, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get load run %s: %w", id, err)
	}
	return &r, nil
}

// UpdateLoadRunStatusParams holds the parameters for UpdateLoadRunStatus.
type UpdateLoadRunStatusParams struct {
	ID            string  `json:"id"`
	Status        string  `json:"status"`
	StatusMessage *string `json:"status_message,omitempty"`
	// ClusterStatus is left unchanged when empty.
	ClusterStatus model.ClusterStatus `json:"cluster_status,omitempty"`
}

// UpdateLoadRunStatus sets the status of a load run. The status message is
// always overwritten so a successful step clears an earlier failure.
func (a *CoreDB) UpdateLoadRunStatus(ctx context.Context, params UpdateLoadRunStatusParams) error {
	_, err := a.db.Exec(ctx,
		`UPDATE load_runs
		 SET status = $1, status_message = $2, cluster_status = COALESCE(NULLIF($3, ''), cluster_status), updated_at = now()
		 WHERE id = $4`,
		params.Status, params.StatusMessage, string(params.ClusterStatus), params.ID,
	)
	if err != nil {
		return fmt.Errorf("update load run %s status: %w", params.ID, err)
	}
	return nil
}

// RecordLoadResultParams holds the parameters for RecordLoadResult.
type RecordLoadResultParams struct {
	ID                string `json:"id"`
	RowsLoaded        int64  `json:"rows_loaded"`
	LoadErrors        int64  `json:"load_errors"`
	LoadErrorsChecked bool   `json:"load_errors_checked"`
}

// RecordLoadResult stores the row and load-error counts of a finished load.
func (a *CoreDB) RecordLoadResult(ctx context.Context, params RecordLoadResultParams) error {
	_, err := a.db.Exec(ctx,
		`UPDATE load_runs
		 SET rows_loaded = $1, load_errors = $2, load_errors_checked = $3, updated_at = now()
		 WHERE id = $4`,
		params.RowsLoaded, params.LoadErrors, params.LoadErrorsChecked, params.ID,
	)
	if err != nil {
		return fmt.Errorf("record load result %s: %w", params.ID, err)
	}
	return nil
}

// DeleteOldLoadRuns deletes finished runs older than retentionDays and
// returns how many were removed. Runs still in flight are kept.
func (a *CoreDB) DeleteOldLoadRuns(ctx context.Context, retentionDays int) (int64, error) {
	tag, err := a.db.Exec(ctx,
		`DELETE FROM load_runs
		 WHERE status IN ($1, $2) AND updated_at < now() - make_interval(days => $3)`,
		model.StatusActive, model.StatusFailed, retentionDays,
	)
	if err != nil {
		return 0, fmt.Errorf("delete old load runs: %w", err)
	}
	return tag.RowsAffected(), nil
}
