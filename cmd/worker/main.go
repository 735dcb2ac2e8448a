// Command worker processes queued imports straight from NATS. Run it or
// cmd/importflow, not both: they share the import-workers queue.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsadapter "github.com/marcosgeo/marcos/internal/adapters/nats"
	"github.com/marcosgeo/marcos/internal/adapters/postgres"
	"github.com/marcosgeo/marcos/internal/adapters/storage"
	"github.com/marcosgeo/marcos/internal/core/domain"
	"github.com/marcosgeo/marcos/internal/core/usecases"
	"github.com/marcosgeo/marcos/internal/pkg/config"
	"github.com/marcosgeo/marcos/internal/pkg/logging"
	"github.com/marcosgeo/marcos/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("marcos-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

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

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}

	imports := usecases.NewImportService(
		postgres.NewParcelRepo(db), postgres.NewImportRepo(db),
		pub, fs, nil, nil,
		usecases.ImportOptions{
			DefaultZone:    cfg.Ingest.DefaultZone,
			MaxEntities:    cfg.Ingest.MaxEntities,
			ConvertTimeout: time.Duration(cfg.Ingest.ConvertTimeout) * time.Second,
		},
	)

	// JetStream delivers one message at a time per subscription, so a
	// worker converts a single file at once. Scale by running more workers.
	err = sub.SubscribeImportRequests(ctx, func(ctx context.Context, job *domain.ImportJob) error {
		jobLog := logger.With("job_id", job.ID, "property_id", job.PropertyID)
		start := time.Now()
		if err := imports.ProcessJob(logging.WithContext(ctx, jobLog), job.ID); err != nil {
			jobLog.Error("import failed", "error", err, "took", time.Since(start))
			return err
		}
		jobLog.Info("import processed", "took", time.Since(start))
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe: %v", err)
	}

	slog.Info("import worker started", "nats", cfg.NATS.URL)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutting down import worker", "signal", sig.String())
	// Drain lets the import in flight finish before the connection closes.
	sub.Close()
}
