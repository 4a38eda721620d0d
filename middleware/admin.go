package middleware

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
)

// AdminAuthHeader carries the admin basic credentials. Authorization is
// already taken by the gateway token.
const AdminAuthHeader = "X-Admin-Authorization"

// AdminAuthMiddleware guards task administration with the ADMIN_USERNAME /
// ADMIN_PASSWORD pair sent as "Basic <base64>" in AdminAuthHeader. With no
// credentials configured every request is refused.
func AdminAuthMiddleware(username, password string) fiber.Handler {
	if username == "" || password == "" {
		log.Println("⚠️  Admin credentials not configured — admin routes disabled")
		return func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin access disabled"})
		}
	}
	basic := basicauth.New(basicauth.Config{
		Users: map[string]string{username: password},
		Realm: "admin",
		Unauthorized: func(c *fiber.Ctx) error {
			log.Printf("🚫 [ADMIN_AUTH] Rejected admin request for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid admin credentials"})
		},
	})
	return func(c *fiber.Ctx) error {
		// The gateway has checked Authorization by now; hand basicauth the admin header instead.
		c.Request().Header.Set(fiber.HeaderAuthorization, c.Get(AdminAuthHeader))
		return basic(c)
	}
}
