package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/edvin/warehouse/internal/activity"
	"github.com/edvin/warehouse/internal/model"
)

func defaultActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:    3,
			InitialInterval:    1 * time.Second,
			MaximumInterval:    10 * time.Second,
			BackoffCoefficient: 2.0,
		},
	}
}

func setRunStatus(ctx workflow.Context, runID, status string, clusterStatus model.ClusterStatus) error {
	return workflow.ExecuteActivity(ctx, "UpdateLoadRunStatus", activity.UpdateLoadRunStatusParams{
		ID:            runID,
		Status:        status,
		ClusterStatus: clusterStatus,
	}).Get(ctx, nil)
}

// setRunFailed is a helper to set a load run to failed with an error message.
// It returns any error but callers typically ignore it since the primary
// error is more important.
func setRunFailed(ctx workflow.Context, runID string, err error, clusterStatus model.ClusterStatus) error {
	msg := err.Error()
	return workflow.ExecuteActivity(ctx, "UpdateLoadRunStatus", activity.UpdateLoadRunStatusParams{
		ID:            runID,
		Status:        model.StatusFailed,
		StatusMessage: &msg,
		ClusterStatus: clusterStatus,
	}).Get(ctx, nil)
}
