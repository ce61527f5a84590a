package workflow

import (
	"github.com/stretchr/testify/mock"
	"go.temporal.io/sdk/testsuite"

	"github.com/edvin/warehouse/internal/activity"
	"github.com/edvin/warehouse/internal/model"
)

// registerActivities registers all activity structs with the test
// environment so that OnActivity mocks can find them by name.
func registerActivities(env *testsuite.TestWorkflowEnvironment) {
	env.RegisterActivity(&activity.CoreDB{})
	env.RegisterActivity(&activity.Warehouse{})
}

// matchFailedStatus matches a failed UpdateLoadRunStatusParams for the run.
// The exact message includes Temporal activity error wrapping that is not
// predictable in tests.
func matchFailedStatus(runID string) any {
	return mock.MatchedBy(func(params activity.UpdateLoadRunStatusParams) bool {
		return params.ID == runID &&
			params.Status == model.StatusFailed &&
			params.StatusMessage != nil
	})
}

func statusParams(runID, status string, clusterStatus model.ClusterStatus) activity.UpdateLoadRunStatusParams {
	return activity.UpdateLoadRunStatusParams{ID: runID, Status: status, ClusterStatus: clusterStatus}
}
