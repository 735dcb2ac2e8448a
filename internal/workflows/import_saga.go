package workflows

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/marcosgeo/marcos/internal/core/domain"
)

// ImportInput is the input for the import workflow.
type ImportInput struct {
	JobID string
}

// ImportOutput reports what an import stored.
type ImportOutput struct {
	JobID    string
	Features int
	Skipped  bool // job was already finished
}

// ImportWorkflow stores the parcels of a queued import. When storing or
// completing fails, the parcels written so far are deleted and the job is
// marked failed (saga compensation).
func ImportWorkflow(ctx workflow.Context, input ImportInput) (ImportOutput, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting import workflow", "job_id", input.JobID)
	out := ImportOutput{JobID: input.JobID}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 2 * time.Second,
			MaximumAttempts: 3,
		},
	})

	var job domain.ImportJob
	if err := workflow.ExecuteActivity(ctx, ActivityStartImport, input.JobID).Get(ctx, &job); err != nil {
		return out, err
	}
	if job.Status.Terminal() {
		logger.Info("Import already finished", "status", job.Status)
		out.Skipped = true
		return out, nil
	}

	err := workflow.ExecuteActivity(ctx, ActivityStoreParcels, input.JobID).Get(ctx, &out.Features)
	if err == nil {
		err = workflow.ExecuteActivity(ctx, ActivityCompleteImport, input.JobID, out.Features).Get(ctx, nil)
	}
	if err != nil {
		logger.Warn("import failed, compensating", "error", err)
		compensate(ctx, input.JobID, err)
		return out, err
	}

	logger.Info("Import completed", "features", out.Features)
	return out, nil
}

// compensate runs even when the workflow itself was cancelled.
func compensate(ctx workflow.Context, jobID string, cause error) {
	dctx, _ := workflow.NewDisconnectedContext(ctx)
	logger := workflow.GetLogger(ctx)

	var removed int64
	if err := workflow.ExecuteActivity(dctx, ActivityRollbackParcels, jobID).Get(dctx, &removed); err != nil {
		logger.Error("rollback parcels", "error", err)
	}
	if err := workflow.ExecuteActivity(dctx, ActivityFailImport, jobID, rootMessage(cause)).Get(dctx, nil); err != nil {
		logger.Error("mark import failed", "error", err)
	}
}

// rootMessage unwraps Temporal's activity error envelope so the job keeps
// the message of the use case error.
func rootMessage(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	return err.Error()
}

// StartImportWorkflow starts the saga for a job. The workflow ID is derived
// from the job, so redelivered requests attach to the running execution.
func StartImportWorkflow(ctx context.Context, c client.Client, taskQueue string, job *domain.ImportJob) (client.WorkflowRun, error) {
	return c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "import-" + job.ID,
		TaskQueue: taskQueue,
	}, ImportWorkflow, ImportInput{JobID: job.ID})
}
