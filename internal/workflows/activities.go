package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/marcosgeo/marcos/internal/core/domain"
	"github.com/marcosgeo/marcos/internal/core/usecases"
)

// Activity names as registered on the worker.
const (
	ActivityStartImport     = "StartImport"
	ActivityStoreParcels    = "StoreParcels"
	ActivityCompleteImport  = "CompleteImport"
	ActivityFailImport      = "FailImport"
	ActivityRollbackParcels = "RollbackParcels"
)

// ImportActivities holds the activity implementations for the import saga.
type ImportActivities struct {
	Imports *usecases.ImportService
}

// StartImport moves a queued job to processing.
func (a *ImportActivities) StartImport(ctx context.Context, jobID string) (*domain.ImportJob, error) {
	job, err := a.Imports.StartJob(ctx, jobID)
	return job, classify(err)
}

// StoreParcels converts the stored upload and inserts its parcels. Parcels
// left by an earlier attempt are removed first so retries do not duplicate
// rows.
func (a *ImportActivities) StoreParcels(ctx context.Context, jobID string) (int, error) {
	if n, err := a.Imports.RollbackParcels(ctx, jobID); err != nil {
		return 0, classify(err)
	} else if n > 0 {
		activity.GetLogger(ctx).Info("removed parcels of a previous attempt", "job_id", jobID, "parcels", n)
	}
	n, err := a.Imports.StoreParcels(ctx, jobID)
	return n, classify(err)
}

// CompleteImport marks the job completed and publishes the event.
func (a *ImportActivities) CompleteImport(ctx context.Context, jobID string, features int) error {
	return classify(a.Imports.CompleteJob(ctx, jobID, features))
}

// FailImport marks the job failed with reason and publishes the event.
func (a *ImportActivities) FailImport(ctx context.Context, jobID, reason string) error {
	return classify(a.Imports.FailJob(ctx, jobID, reason))
}

// RollbackParcels deletes every parcel the job wrote (saga compensation).
func (a *ImportActivities) RollbackParcels(ctx context.Context, jobID string) (int64, error) {
	n, err := a.Imports.RollbackParcels(ctx, jobID)
	if err != nil {
		return 0, classify(err)
	}
	activity.GetLogger(ctx).Info("parcels rolled back", "job_id", jobID, "parcels", n)
	return n, nil
}

// classify stops Temporal from retrying errors that cannot succeed on a
// second attempt.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{domain.ErrInvalidInput, domain.ErrUnprocessable, domain.ErrNotFound} {
		if domain.IsKind(err, kind) {
			return temporal.NewNonRetryableApplicationError(err.Error(), errorType(kind), err)
		}
	}
	return err
}

func errorType(kind error) string {
	switch kind {
	case domain.ErrInvalidInput:
		return "InvalidInput"
	case domain.ErrUnprocessable:
		return "Unprocessable"
	case domain.ErrNotFound:
		return "NotFound"
	}
	return fmt.Sprintf("%v", kind)
}
