package core

import (
	"context"

	temporalclient "go.temporal.io/sdk/client"

	"github.com/edvin/warehouse/internal/model"
)

const taskQueue = "warehouse-tasks"

// startWorkflow starts the task's workflow on the warehouse task queue.
func startWorkflow(ctx context.Context, tc temporalclient.Client, task model.ProvisionTask) error {
	_, err := tc.ExecuteWorkflow(ctx, temporalclient.StartWorkflowOptions{
		ID:        task.WorkflowID,
		TaskQueue: taskQueue,
	}, task.WorkflowName, task.Arg)
	return err
}
