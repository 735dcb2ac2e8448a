package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/marcosgeo/marcos/internal/pkg/metrics"
)

const (
	queryTimeout  = 15 * time.Second
	uploadTimeout = 90 * time.Second
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	app.Use(recover.New())

	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Conversions are CPU heavy; 120 requests per minute per IP.
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")

	// Survey file imports
	v1.Post("/imports/preview", timeout.NewWithContext(PreviewImportHandler(deps), uploadTimeout))
	v1.Post("/imports", timeout.NewWithContext(CreateImportHandler(deps), uploadTimeout))
	v1.Get("/imports/:id", timeout.NewWithContext(GetImportHandler(deps), queryTimeout))
	v1.Post("/upload-dxf",
		DeprecationMiddleware([]DeprecatedRoute{{
			Path:        "/v1/upload-dxf",
			SunsetDate:  uploadDXFSunset,
			Alternative: "/v1/imports/preview",
		}}),
		timeout.NewWithContext(PreviewImportHandler(deps), uploadTimeout))

	// Stored geometry
	v1.Get("/properties/:id/parcels", timeout.NewWithContext(ListParcelsHandler(deps), queryTimeout))
	v1.Get("/parcels/containing", timeout.NewWithContext(ContainingParcelsHandler(deps), queryTimeout))
	v1.Post("/properties/:id/marcos", timeout.NewWithContext(ImportMarcosHandler(deps), uploadTimeout))
	v1.Get("/marcos/nearby", timeout.NewWithContext(NearbyMarcosHandler(deps), queryTimeout))

	// Coordinate tools
	v1.Post("/coordinates/parse", ParseCoordinateHandler(deps))
	v1.Get("/zones/detect", DetectZoneHandler(deps))

	// GraphQL
	app.Post("/graphql", timeout.NewWithContext(GraphQLHandler(deps), queryTimeout))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket import events
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
