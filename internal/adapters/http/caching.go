package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control on GET responses the handler left
// alone. Stored parcels and markers only change through imports, so they
// get short shared caching; conversions and job state are never cached.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet {
			if c.GetRespHeader("Cache-Control") == "" {
				c.Set("Cache-Control", "no-store")
			}
			return err
		}
		if c.GetRespHeader("Cache-Control") != "" {
			return err
		}

		if ttl := cacheControlFor(c.Path()); ttl != "" {
			c.Set("Cache-Control", ttl)
		}
		return err
	}
}

func cacheControlFor(path string) string {
	switch {
	case path == "/v1/health" || path == "/v1/ready":
		return "public, max-age=10"
	case path == "/metrics":
		return "no-cache"
	case strings.HasPrefix(path, "/v1/imports/"):
		return "private, max-age=0"
	case strings.HasPrefix(path, "/v1/zones/"):
		return "public, max-age=86400" // zone grid never changes
	case strings.HasPrefix(path, "/v1/properties/"):
		return "private, max-age=30"
	case strings.HasPrefix(path, "/v1/parcels/") || strings.HasPrefix(path, "/v1/marcos/"):
		return "public, max-age=60"
	case strings.HasPrefix(path, "/docs"):
		return "public, max-age=3600"
	case strings.HasPrefix(path, "/v1/"):
		return "public, max-age=60"
	}
	return ""
}
