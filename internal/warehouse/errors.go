package warehouse

import (
	"errors"
	"fmt"

	"github.com/edvin/warehouse/internal/model"
)

var (
	// ErrWaitTimeout is returned when the cluster did not become available
	// within the configured number of polls.
	ErrWaitTimeout = errors.New("timed out waiting for cluster to become available")
	// ErrClusterNotFound is returned when DescribeClusters has no such cluster.
	ErrClusterNotFound = errors.New("cluster not found")
	// ErrEndpointUnset is returned when the cluster has no endpoint yet.
	ErrEndpointUnset = errors.New("cluster endpoint not set")
	// ErrClusterExists is returned when CreateCluster reports a duplicate identifier.
	ErrClusterExists = errors.New("cluster already exists")
)

// TimeoutError reports the last status seen before the wait gave up, so a
// caller can tell a cluster stuck in "unavailable" from one still "creating".
type TimeoutError struct {
	ClusterIdentifier string
	Attempts          int
	LastStatus        model.ClusterStatus
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("cluster %s not available after %d attempts (last status %q)",
		e.ClusterIdentifier, e.Attempts, e.LastStatus)
}

func (e *TimeoutError) Unwrap() error {
	return ErrWaitTimeout
}
