package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/marcosgeo/marcos/internal/adapters/http"
	natsadapter "github.com/marcosgeo/marcos/internal/adapters/nats"
	"github.com/marcosgeo/marcos/internal/adapters/postgres"
	"github.com/marcosgeo/marcos/internal/adapters/storage"
	"github.com/marcosgeo/marcos/internal/adapters/valkey"
	"github.com/marcosgeo/marcos/internal/core/ports"
	"github.com/marcosgeo/marcos/internal/core/usecases"
	"github.com/marcosgeo/marcos/internal/pkg/config"
	"github.com/marcosgeo/marcos/internal/pkg/logging"
	"github.com/marcosgeo/marcos/internal/pkg/metrics"
	"github.com/marcosgeo/marcos/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("marcos-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go reportPoolStats(ctx, db)

	// Cache. The services take interfaces, so a missing cache must stay a
	// nil interface rather than a typed nil pointer.
	var cacheSvc ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, preview cache disabled", "error", err)
		cache = nil
	} else {
		cacheSvc = cache
		defer cache.Close()
	}

	// NATS
	var publisher ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, async imports disabled", "error", err)
	} else {
		publisher = pub
		defer pub.Close()
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer natsConn.Close()
	}

	// Upload storage for queued imports
	var objects ports.ObjectStorage
	fs, err := storage.New(cfg.Storage.Dir)
	if err != nil {
		slog.Warn("upload storage unavailable", "dir", cfg.Storage.Dir, "error", err)
	} else {
		objects = fs
	}

	// Repos
	parcelRepo := postgres.NewParcelRepo(db)
	importRepo := postgres.NewImportRepo(db)
	marcoRepo := postgres.NewMarcoRepo(db)

	// Use cases
	importSvc := usecases.NewImportService(parcelRepo, importRepo, publisher, objects, cacheSvc, nil, usecases.ImportOptions{
		DefaultZone:    cfg.Ingest.DefaultZone,
		MaxEntities:    cfg.Ingest.MaxEntities,
		PreviewTTL:     cfg.Ingest.PreviewCacheTTL,
		ConvertTimeout: time.Duration(cfg.Ingest.ConvertTimeout) * time.Second,
	})

	deps := &http.Dependencies{
		Imports:        importSvc,
		Parcels:        usecases.NewParcelService(parcelRepo),
		Marcos:         usecases.NewMarcoService(marcoRepo, cfg.Ingest.DefaultZone),
		NATS:           natsConn,
		DB:             db,
		Cache:          cache,
		MaxUploadBytes: cfg.Ingest.MaxUploadBytes(),
		DefaultZone:    cfg.Ingest.DefaultZone,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		// multipart framing on top of the largest accepted file
		BodyLimit: cfg.Ingest.MaxUploadBytes() + 1<<20,
		AppName:   "Marcos API",
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins: "http://localhost:3000, http://localhost:5173",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, If-None-Match",
		ExposeHeaders: "Link, X-Total-Count, X-Request-ID, X-UTM-Zone, Location, " +
			"Deprecation, Sunset",
		MaxAge: 3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Uploads may take a while to convert.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

func reportPoolStats(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			metrics.UpdateDBPoolMetrics(db.Pool.Stat())
		case <-ctx.Done():
			return
		}
	}
}
