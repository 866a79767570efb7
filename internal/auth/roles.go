package auth

import (
	"github.com/gofiber/fiber/v2"
)

// Require runs the authorization table for op before the route handler.
// Ownership checks that need the stored resource are left to the service.
func Require(op Operation) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, _ := PrincipalFromContext(c)
		if err := Authorize(principal, op, Target{}); err != nil {
			return err
		}
		return c.Next()
	}
}

// RequireAdmin ensures the caller is an administrator.
func RequireAdmin() fiber.Handler {
	return Require(OpAdminDashboard)
}

// RequireAuthenticated ensures a principal is present.
func RequireAuthenticated() fiber.Handler {
	return Require(OpLogout)
}
