package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/edvin/warehouse/internal/activity"
	"github.com/edvin/warehouse/internal/model"
	"github.com/edvin/warehouse/internal/warehouse"
)

// LoadWarehouseParams is the input of LoadWarehouseWorkflow. Zero wait
// values fall back to a 60s delay and 30 polls.
type LoadWarehouseParams struct {
	RunID           string        `json:"run_id"`
	WaitDelay       time.Duration `json:"wait_delay"`
	WaitMaxAttempts int           `json:"wait_max_attempts"`
}

// LoadWarehouseWorkflow provisions the run's cluster, waits for it to become
// available and loads the run's artifact into the sales table.
func LoadWarehouseWorkflow(ctx workflow.Context, params LoadWarehouseParams) error {
	ctx = workflow.WithActivityOptions(ctx, defaultActivityOptions())
	logger := workflow.GetLogger(ctx)
	runID := params.RunID

	err := setRunStatus(ctx, runID, model.StatusProvisioning, "")
	if err != nil {
		return err
	}

	var run model.LoadRun
	err = workflow.ExecuteActivity(ctx, "GetLoadRun", runID).Get(ctx, &run)
	if err != nil {
		_ = setRunFailed(ctx, runID, err, "")
		return err
	}
	identifier := run.ClusterIdentifier

	var created activity.CreateClusterResult
	err = workflow.ExecuteActivity(ctx, "CreateCluster", identifier).Get(ctx, &created)
	if err != nil {
		_ = setRunFailed(ctx, runID, err, "")
		return err
	}

	err = setRunStatus(ctx, runID, model.StatusWaiting, created.Status)
	if err != nil {
		return err
	}

	status, err := waitForCluster(ctx, identifier, params.WaitDelay, params.WaitMaxAttempts)
	if err != nil {
		_ = setRunFailed(ctx, runID, err, status)
		return err
	}

	err = setRunStatus(ctx, runID, model.StatusLoading, status)
	if err != nil {
		return err
	}

	var conn model.ConnectionDescriptor
	err = workflow.ExecuteActivity(ctx, "ResolveConnection", identifier).Get(ctx, &conn)
	if err != nil {
		_ = setRunFailed(ctx, runID, err, "")
		return err
	}

	err = workflow.ExecuteActivity(ctx, "RecreateTable", conn).Get(ctx, nil)
	if err != nil {
		_ = setRunFailed(ctx, runID, err, "")
		return err
	}

	err = workflow.ExecuteActivity(ctx, "UploadArtifact", run.Artifact()).Get(ctx, nil)
	if err != nil {
		_ = setRunFailed(ctx, runID, err, "")
		return err
	}

	var rows int64
	copyCtx := workflow.WithStartToCloseTimeout(ctx, 30*time.Minute)
	err = workflow.ExecuteActivity(copyCtx, "CopyArtifact", activity.CopyArtifactParams{
		Connection: conn,
		Artifact:   run.Artifact(),
	}).Get(ctx, &rows)
	if err != nil {
		// Record what stl_load_errors says about the rejected rows.
		result := checkLoadErrors(ctx, runID, conn, 0)
		_ = workflow.ExecuteActivity(ctx, "RecordLoadResult", result).Get(ctx, nil)
		_ = setRunFailed(ctx, runID, err, "")
		return err
	}

	var sales []model.Sale
	err = workflow.ExecuteActivity(ctx, "ListSales", conn).Get(ctx, &sales)
	if err != nil {
		_ = setRunFailed(ctx, runID, err, "")
		return err
	}
	logger.Info("sales loaded", "runID", runID, "rows", rows, "sales", len(sales))

	result := checkLoadErrors(ctx, runID, conn, rows)
	err = workflow.ExecuteActivity(ctx, "RecordLoadResult", result).Get(ctx, nil)
	if err != nil {
		_ = setRunFailed(ctx, runID, err, "")
		return err
	}

	return setRunStatus(ctx, runID, model.StatusActive, "")
}

// checkLoadErrors queries stl_load_errors once. The query is diagnostic
// only; a failure leaves LoadErrorsChecked false and never fails the run.
func checkLoadErrors(ctx workflow.Context, runID string, conn model.ConnectionDescriptor, rows int64) activity.RecordLoadResultParams {
	logger := workflow.GetLogger(ctx)
	result := activity.RecordLoadResultParams{ID: runID, RowsLoaded: rows}

	var loadErrors []model.LoadError
	diagCtx := workflow.WithRetryPolicy(ctx, temporal.RetryPolicy{MaximumAttempts: 1})
	err := workflow.ExecuteActivity(diagCtx, "ListLoadErrors", conn).Get(ctx, &loadErrors)
	if err != nil {
		logger.Warn("could not query load errors", "runID", runID, "error", err)
		return result
	}

	result.LoadErrors = int64(len(loadErrors))
	result.LoadErrorsChecked = true
	for _, le := range loadErrors {
		logger.Warn("load error", "runID", runID, "line", le.LineNumber, "column", le.ColName, "reason", le.ErrReason)
	}
	return result
}

// waitForCluster polls the cluster status with a durable timer between
// polls. It returns the last observed status alongside any error.
func waitForCluster(ctx workflow.Context, identifier string, delay time.Duration, maxAttempts int) (model.ClusterStatus, error) {
	if delay <= 0 {
		delay = warehouse.DefaultWaitDelay
	}
	if maxAttempts <= 0 {
		maxAttempts = warehouse.DefaultWaitMaxAttempts
	}
	logger := workflow.GetLogger(ctx)

	var status model.ClusterStatus
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := workflow.ExecuteActivity(ctx, "DescribeClusterStatus", identifier).Get(ctx, &status)
		if err != nil {
			return status, err
		}

		switch {
		case status.IsAvailable():
			logger.Info("cluster is available", "cluster", identifier, "attempt", attempt)
			return status, nil
		case status.IsUnavailable():
			logger.Warn("cluster is unavailable, polling again", "cluster", identifier, "attempt", attempt)
		default:
			logger.Info("cluster not available yet", "cluster", identifier, "attempt", attempt, "status", string(status))
		}

		if attempt < maxAttempts {
			if err := workflow.Sleep(ctx, delay); err != nil {
				return status, err
			}
		}
	}

	return status, &warehouse.TimeoutError{
		ClusterIdentifier: identifier,
		Attempts:          maxAttempts,
		LastStatus:        status,
	}
}
