package validation

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Config struct {
	// MaxTextLength bounds every string field of a JSON body, in bytes.
	MaxTextLength int
	// MaxBatchSize bounds every array field of a JSON body.
	MaxBatchSize        int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

// Middleware rejects write requests with an unexpected content type and JSON
// bodies that are malformed, oversized or carry NUL bytes.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxTextLength == 0 {
		cfg.MaxTextLength = 1 << 20
	}
	if cfg.MaxBatchSize == 0 {
		cfg.MaxBatchSize = 1000
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{fiber.MIMEApplicationJSON, fiber.MIMEMultipartForm, fiber.MIMETextHTML}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		contentType := strings.ToLower(c.Get(fiber.HeaderContentType))
		if contentType != "" && !allowed(contentType, cfg.AllowedContentTypes) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		if !strings.HasPrefix(contentType, fiber.MIMEApplicationJSON) || len(c.Body()) == 0 {
			return c.Next()
		}

		var body any
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid JSON format",
			})
		}

		if status, msg := check(body, cfg); status != 0 {
			cfg.Logger.Warn("Rejected request body",
				zap.String("ip", c.IP()),
				zap.String("path", c.Path()),
				zap.String("reason", msg),
			)
			return c.Status(status).JSON(fiber.Map{"error": msg})
		}

		return c.Next()
	}
}

func allowed(contentType string, types []string) bool {
	for _, t := range types {
		if strings.HasPrefix(contentType, t) {
			return true
		}
	}
	return false
}

// check walks a decoded JSON value and returns a status and message for the
// first violation, or zero.
func check(v any, cfg Config) (int, string) {
	switch val := v.(type) {
	case string:
		if len(val) > cfg.MaxTextLength {
			return fiber.StatusRequestEntityTooLarge, "Text field exceeds maximum length"
		}
		if strings.ContainsRune(val, 0) {
			return fiber.StatusBadRequest, "Text fields must not contain NUL bytes"
		}
	case []any:
		if len(val) > cfg.MaxBatchSize {
			return fiber.StatusRequestEntityTooLarge, "Batch exceeds maximum size"
		}
		for _, el := range val {
			if status, msg := check(el, cfg); status != 0 {
				return status, msg
			}
		}
	case map[string]any:
		for _, el := range val {
			if status, msg := check(el, cfg); status != 0 {
				return status, msg
			}
		}
	}
	return 0, ""
}
