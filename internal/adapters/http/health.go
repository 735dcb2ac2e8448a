package http

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler returns a basic liveness check.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()
	version := buildVersion()

	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"uptime":  time.Since(startedAt).Round(time.Second).String(),
			"version": version,
		})
	}
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

// probe checks one dependency. Optional probes never fail readiness when
// the dependency is absent.
type probe struct {
	name     string
	required bool
	present  bool
	check    func(ctx context.Context) string // "" means ok
}

func readinessProbes(deps *Dependencies) []probe {
	return []probe{
		{
			name: "database", required: true, present: deps.DB != nil,
			check: func(ctx context.Context) string {
				if err := deps.DB.Pool.Ping(ctx); err != nil {
					return "error: " + err.Error()
				}
				return ""
			},
		},
		{
			// Without NATS imports only run synchronously.
			name: "nats", present: deps.NATS != nil,
			check: func(context.Context) string {
				if !deps.NATS.IsConnected() {
					return "disconnected"
				}
				return ""
			},
		},
		{
			// Without Valkey previews are recomputed each time.
			name: "cache", present: deps.Cache != nil,
			check: func(ctx context.Context) string {
				if err := deps.Cache.Ping(ctx); err != nil {
					return "error: " + err.Error()
				}
				return ""
			},
		},
	}
}

// ReadyHandler runs the dependency probes concurrently. Only the database
// is mandatory, but a configured dependency that fails its probe makes the
// service not ready.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	probes := readinessProbes(deps)

	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		var (
			mu     sync.Mutex
			wg     sync.WaitGroup
			checks = make(map[string]string, len(probes))
			ready  = true
		)
		for _, p := range probes {
			if !p.present {
				checks[p.name] = "not configured"
				ready = ready && !p.required
				continue
			}
			wg.Add(1)
			go func(p probe) {
				defer wg.Done()
				result := p.check(ctx)
				mu.Lock()
				defer mu.Unlock()
				if result == "" {
					checks[p.name] = "ok"
					return
				}
				checks[p.name] = result
				ready = false
			}(p)
		}
		wg.Wait()

		if !ready {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "not ready",
				"checks": checks,
			})
		}
		return c.JSON(fiber.Map{"status": "ready", "checks": checks})
	}
}
