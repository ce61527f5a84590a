package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/edvin/warehouse/internal/model"
)

var (
	clusterPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warehouse_cluster_polls_total",
			Help: "Cluster availability polls by observed status",
		},
		[]string{"status"},
	)

	provisionRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warehouse_provision_requests_total",
			Help: "CreateCluster requests by outcome",
		},
		[]string{"outcome"},
	)

	rowsLoadedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "warehouse_rows_loaded_total",
			Help: "Rows read back from the sales table after COPY",
		},
	)

	loadErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "warehouse_load_errors_total",
			Help: "Rows reported by stl_load_errors for uploaded artifacts",
		},
	)

	pipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "warehouse_pipeline_duration_seconds",
			Help:    "Load pipeline duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"outcome"},
	)

	activityFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warehouse_activity_failures_total",
			Help: "Failed Temporal activity attempts by activity and error type",
		},
		[]string{"activity", "type"},
	)
)

// ObserveClusterStatus counts one availability poll.
func ObserveClusterStatus(status model.ClusterStatus) {
	clusterPollsTotal.WithLabelValues(string(status)).Inc()
}

// ObserveProvision counts one CreateCluster request.
func ObserveProvision(err error) {
	provisionRequestsTotal.WithLabelValues(outcome(err)).Inc()
}

// ObserveLoad records the result of one pipeline run.
func ObserveLoad(rows, loadErrors int, seconds float64, err error) {
	rowsLoadedTotal.Add(float64(rows))
	loadErrorsTotal.Add(float64(loadErrors))
	pipelineDuration.WithLabelValues(outcome(err)).Observe(seconds)
}

// ObserveActivityFailure counts one failed activity attempt.
func ObserveActivityFailure(activity, errType string) {
	activityFailuresTotal.WithLabelValues(activity, errType).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
