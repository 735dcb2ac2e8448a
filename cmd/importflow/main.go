// Command importflow runs queued imports as Temporal workflows, so a failed
// import is rolled back and marked failed even across worker restarts.
package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/marcosgeo/marcos/internal/adapters/nats"
	"github.com/marcosgeo/marcos/internal/adapters/postgres"
	"github.com/marcosgeo/marcos/internal/adapters/storage"
	"github.com/marcosgeo/marcos/internal/core/domain"
	"github.com/marcosgeo/marcos/internal/core/usecases"
	"github.com/marcosgeo/marcos/internal/pkg/config"
	"github.com/marcosgeo/marcos/internal/pkg/logging"
	"github.com/marcosgeo/marcos/internal/workflows"
)

func main() {
	cfg, err := config.Load("marcos-importflow")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	fs, err := storage.New(cfg.Storage.Dir)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats publisher: %v", err)
	}
	defer pub.Close()

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	imports := usecases.NewImportService(
		postgres.NewParcelRepo(db), postgres.NewImportRepo(db),
		pub, fs, nil, nil,
		usecases.ImportOptions{
			DefaultZone:    cfg.Ingest.DefaultZone,
			MaxEntities:    cfg.Ingest.MaxEntities,
			ConvertTimeout: time.Duration(cfg.Ingest.ConvertTimeout) * time.Second,
		},
	)

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.ImportWorkflow)
	w.RegisterActivity(&workflows.ImportActivities{Imports: imports})

	// Requests arrive on NATS; each one becomes a workflow execution.
	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()

	err = sub.SubscribeImportRequests(ctx, func(ctx context.Context, job *domain.ImportJob) error {
		run, err := workflows.StartImportWorkflow(ctx, c, cfg.Temporal.TaskQueue, job)
		if err != nil {
			return domain.WrapError(domain.ErrTemporary, "start import workflow", err)
		}
		slog.Info("import workflow started", "job_id", job.ID, "workflow_id", run.GetID(), "run_id", run.GetRunID())
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe: %v", err)
	}

	slog.Info("importflow worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
