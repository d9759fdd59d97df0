package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/LibreCodeCoop/libresign-saas/internal/activity"
	"github.com/LibreCodeCoop/libresign-saas/internal/model"
)

// storeCtx returns a workflow context with activity options suited for
// database activities: quick operations, short retries.
func storeCtx(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:    3,
			InitialInterval:    1 * time.Second,
			MaximumInterval:    10 * time.Second,
			BackoffCoefficient: 2.0,
		},
	})
}

// remoteCtx returns a workflow context with activity options for operations
// against a remote instance: a generous per-call timeout and the standard
// provisioning retry ladder of roughly one, five and ten minutes between
// attempts. Fatal transport errors short-circuit the ladder because the
// activities mark them non-retryable.
func remoteCtx(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:    3,
			InitialInterval:    1 * time.Minute,
			MaximumInterval:    10 * time.Minute,
			BackoffCoefficient: 5.0,
		},
	})
}

// syncCtx returns activity options for the metrics sync path: two attempts
// with a single five-minute backoff.
func syncCtx(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 2,
			InitialInterval: 5 * time.Minute,
		},
	})
}

// setTenantFailed records a terminal provisioning failure with the error
// message verbatim. Callers typically ignore its error since the primary
// error is more important.
func setTenantFailed(ctx workflow.Context, tenantID string, err error) error {
	msg := err.Error()
	return workflow.ExecuteActivity(storeCtx(ctx), "UpdateTenantStatus", activity.UpdateTenantStatusParams{
		ID:            tenantID,
		Status:        model.TenantFailed,
		StatusMessage: &msg,
	}).Get(ctx, nil)
}
