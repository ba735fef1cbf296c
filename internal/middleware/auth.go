package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"questlog_backend/pkg/utils/jwt"
)

// AuthMiddleware bearer token'ı doğrular ve claims'i context'e koyar
func AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Missing or invalid authorization header",
			})
		}

		claims, err := jwt.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid or expired token",
			})
		}

		c.Locals("user", claims)
		return c.Next()
	}
}
