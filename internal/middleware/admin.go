package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// StaffMiddleware restricts a route to staff and admin users
func StaffMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if !user.IsAuthenticated() {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required",
			})
		}

		if !user.IsStaffOrAdmin() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Staff access required",
			})
		}

		return c.Next()
	}
}
