package warehouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/edvin/warehouse/internal/metrics"
	"github.com/edvin/warehouse/internal/model"
)

const (
	DefaultWaitDelay       = 60 * time.Second
	DefaultWaitMaxAttempts = 30
)

// WaiterOptions bounds the availability poll.
type WaiterOptions struct {
	Delay       time.Duration
	MaxAttempts int
	// OnStatus, if set, is called with every polled status.
	OnStatus func(attempt int, status model.ClusterStatus)
}

// Waiter polls a cluster until it reports "available".
type Waiter struct {
	client RedshiftAPI
	logger zerolog.Logger
	opts   WaiterOptions
}

// NewWaiter creates a Waiter. Zero option values fall back to a 60s delay and
// 30 attempts.
func NewWaiter(client RedshiftAPI, logger zerolog.Logger, opts WaiterOptions) *Waiter {
	if opts.Delay <= 0 {
		opts.Delay = DefaultWaitDelay
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultWaitMaxAttempts
	}
	return &Waiter{
		client: client,
		logger: logger.With().Str("component", "waiter").Logger(),
		opts:   opts,
	}
}

// notAvailable carries the last polled status through the retry loop.
type notAvailable struct {
	status model.ClusterStatus
}

func (e *notAvailable) Error() string {
	return fmt.Sprintf("cluster status %q", e.status)
}

// Wait describes the cluster every Delay until its status is "available".
// Every other status, "unavailable" included, is logged and polled again.
// After MaxAttempts describes it returns a *TimeoutError carrying the last
// status. A describe failure or context cancellation ends the wait at once.
func (w *Waiter) Wait(ctx context.Context, identifier string) (*model.Cluster, error) {
	backoff := retry.WithMaxRetries(uint64(w.opts.MaxAttempts-1), retry.NewConstant(w.opts.Delay))

	var (
		attempt int
		cluster *model.Cluster
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		c, err := Describe(ctx, w.client, identifier)
		if err != nil {
			return err
		}
		cluster = c

		if w.opts.OnStatus != nil {
			w.opts.OnStatus(attempt, c.Status)
		}
		metrics.ObserveClusterStatus(c.Status)

		switch {
		case c.Status.IsAvailable():
			w.logger.Info().Str("cluster", identifier).Int("attempt", attempt).Msg("cluster is available")
			return nil
		case c.Status.IsUnavailable():
			w.logger.Warn().Str("cluster", identifier).Int("attempt", attempt).Msg("cluster is unavailable, polling again")
		default:
			w.logger.Info().Str("cluster", identifier).Int("attempt", attempt).
				Str("status", string(c.Status)).Msg("cluster not available yet")
		}
		return retry.RetryableError(&notAvailable{status: c.Status})
	})
	if err != nil {
		var na *notAvailable
		if errors.As(err, &na) {
			return cluster, &TimeoutError{
				ClusterIdentifier: identifier,
				Attempts:          attempt,
				LastStatus:        na.status,
			}
		}
		return cluster, fmt.Errorf("wait for cluster %s: %w", identifier, err)
	}
	return cluster, nil
}
