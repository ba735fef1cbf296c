package middleware

import (
	"github.com/gofiber/fiber/v2"

	"questlog_backend/internal/ledger"
	"questlog_backend/pkg/entitlement"
	"questlog_backend/pkg/utils/jwt"
)

// CheckFeatureAccess kullanıcının abonelik durumuna göre premium içeriği korur
func CheckFeatureAccess(store *ledger.Store, feature entitlement.Feature) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := c.Locals("user").(*jwt.Claims)

		user, err := store.UserByID(claims.UserID)
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"error":   "User not found",
			})
		}

		if !entitlement.CanUseFeature(entitlement.Status(user.SubscriptionStatus), feature) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"error":   "This feature requires an active subscription",
			})
		}

		return c.Next()
	}
}
