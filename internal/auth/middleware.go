package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/casekit/case-engine/internal/config"
)

// Middleware authenticates trigger-API callers. A request passes with
// either a valid bearer service token or a configured API key in
// X-Api-Key. AllowUnauthenticated bypasses the check for local
// development.
func Middleware(cfg config.AuthConfig, tokens *TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.AllowUnauthenticated {
			return c.Next()
		}

		if key := c.Get("X-Api-Key"); key != "" && VerifyAPIKey(key, cfg.APIKeyHash) {
			c.Locals("caller", "api-key")
			return c.Next()
		}

		header := c.Get(fiber.HeaderAuthorization)
		if strings.HasPrefix(header, "Bearer ") {
			claims, err := tokens.Validate(strings.TrimPrefix(header, "Bearer "))
			if err == nil {
				c.Locals("caller", claims.ServiceName)
				return c.Next()
			}
		}

		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "unauthorized",
		})
	}
}
