// middleware/auth.go
package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// UserIDLocal is the fiber.Locals key holding the caller's external user id.
const UserIDLocal = "user_id"

// UserContextMiddleware reads the external user id forwarded by the gateway
// (OAuth subject or Telegram user id) and rejects requests without one.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))
		if userID == "" {
			log.Printf("❌ [USER_CTX] X-User-ID required but missing on %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID — request must come through gateway with auth context",
			})
		}
		c.Locals(UserIDLocal, userID)
		return c.Next()
	}
}

// UserID returns the id stored by UserContextMiddleware.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(UserIDLocal).(string)
	return id
}
