package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/JobFuchs/internal/pkg/usercontext"
)

// RequireProvider ensures the authenticated user holds a provider account.
// Only providers have subscriptions; regular accounts get a JSON 403.
func RequireProvider(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Authentication required"})
	}
	if !usercontext.IsProvider(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Provider account required"})
	}
	return c.Next()
}

// RequireAdmin ensures the authenticated user is an admin.
func RequireAdmin(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Authentication required"})
	}
	if !usercontext.IsAdmin(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Admin access required"})
	}
	return c.Next()
}
