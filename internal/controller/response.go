package controller

import "github.com/gofiber/fiber/v2"

// All endpoints share one envelope: {success: true, data: ...} or
// {success: false, error: "message"}.

func respondOK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func respondError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}
