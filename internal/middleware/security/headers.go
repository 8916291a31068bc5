package security

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

type HeadersConfig struct {
	AllowedOrigins []string
	IsDevelopment  bool
}

// HeadersMiddleware sets response headers for a JSON-only API.
func HeadersMiddleware(cfg HeadersConfig) fiber.Handler {
	csp := "default-src 'none'; frame-ancestors 'none'; base-uri 'none'"
	if src := connectSrc(cfg.AllowedOrigins); src != "" {
		csp += "; connect-src 'self' " + src
	}

	return func(c *fiber.Ctx) error {
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("Referrer-Policy", "no-referrer")
		c.Set("Cache-Control", "no-store")
		c.Set("Content-Security-Policy", csp)

		if !cfg.IsDevelopment {
			c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		return c.Next()
	}
}

// CORS allows the configured origins, or any origin in development. With
// no origins configured outside development, cross-origin requests get no
// CORS headers.
func CORS(cfg HeadersConfig) fiber.Handler {
	origins := strings.Join(cfg.AllowedOrigins, ", ")
	if origins == "" {
		if !cfg.IsDevelopment {
			return func(c *fiber.Ctx) error { return c.Next() }
		}
		origins = "*"
	}

	return cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, X-Client-ID",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	})
}

func connectSrc(origins []string) string {
	return strings.TrimSpace(strings.Join(origins, " "))
}
