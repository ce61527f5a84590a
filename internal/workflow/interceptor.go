package workflow

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/temporal"

	"github.com/edvin/warehouse/internal/metrics"
)

// ActivityErrorInterceptor gives untyped activity errors the activity name as
// their application error type and counts every failed attempt. Errors that
// already carry a type, such as the non-retryable "CopyFailed", keep it.
type ActivityErrorInterceptor struct {
	interceptor.WorkerInterceptorBase
}

func (e *ActivityErrorInterceptor) InterceptActivity(
	ctx context.Context,
	next interceptor.ActivityInboundInterceptor,
) interceptor.ActivityInboundInterceptor {
	return &activityErrorInterceptor{next: next}
}

type activityErrorInterceptor struct {
	interceptor.ActivityInboundInterceptorBase
	next interceptor.ActivityInboundInterceptor
}

func (e *activityErrorInterceptor) Init(outbound interceptor.ActivityOutboundInterceptor) error {
	return e.next.Init(outbound)
}

func (e *activityErrorInterceptor) ExecuteActivity(
	ctx context.Context,
	in *interceptor.ExecuteActivityInput,
) (interface{}, error) {
	result, err := e.next.ExecuteActivity(ctx, in)
	if err == nil {
		return result, nil
	}

	name := activity.GetInfo(ctx).ActivityType.Name
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.Type() != "" {
		metrics.ObserveActivityFailure(name, appErr.Type())
		return result, err
	}

	metrics.ObserveActivityFailure(name, name)
	return result, temporal.NewApplicationError(err.Error(), name, err)
}
