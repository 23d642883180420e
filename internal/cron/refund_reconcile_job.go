package cron

import (
	"context"
	"fmt"

	"github.com/vrumi/vrumi-backend/internal/refunds"
	"github.com/vrumi/vrumi-backend/pkg/logger"
)

type refundReconciler interface {
	Reconcile(ctx context.Context) (refunds.ReconcileReport, error)
}

type RefundReconcileJobParams struct {
	Logger     *logger.Logger
	Reconciler refundReconciler
}

// NewRefundReconcileJob finishes refund intents left half-done by a crash or
// a processor outage.
func NewRefundReconcileJob(params RefundReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("refund reconciler required")
	}
	return &refundReconcileJob{logg: params.Logger, reconciler: params.Reconciler}, nil
}

type refundReconcileJob struct {
	logg       *logger.Logger
	reconciler refundReconciler
}

func (j *refundReconcileJob) Name() string { return "refund-reconcile" }

func (j *refundReconcileJob) Run(ctx context.Context) error {
	report, err := j.reconciler.Reconcile(ctx)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"finalized": report.Finalized,
		"retried":   report.Retried,
		"abandoned": report.Abandoned,
	})
	if err != nil {
		return fmt.Errorf("refund reconcile: %w", err)
	}
	if report.Abandoned > 0 {
		j.logg.Warn(logCtx, "refunds.intents_abandoned")
	}
	j.logg.Info(logCtx, "refunds.reconcile_complete")
	return nil
}
