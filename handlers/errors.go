// handlers/errors.go
package handlers

import (
	"errors"
	"log"

	"engagement-rewards-system/services"

	"github.com/gofiber/fiber/v2"
)

// respondError writes a tagged failure so clients can tell "retry" from
// "already done" from "invalid input".
func respondError(c *fiber.Ctx, err error) error {
	var se *services.ServiceError
	if !errors.As(err, &se) {
		log.Printf("❌ Unhandled error on %s: %v", c.Path(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success":   false,
			"error":     "internal error",
			"code":      services.CodePersistence,
			"retryable": true,
		})
	}

	status := fiber.StatusInternalServerError
	switch se.Kind {
	case services.KindValidation:
		status = fiber.StatusBadRequest
	case services.KindNotFound:
		status = fiber.StatusNotFound
	case services.KindConflict:
		status = fiber.StatusConflict
	case services.KindOracle:
		status = fiber.StatusBadGateway
	}
	if status == fiber.StatusInternalServerError {
		log.Printf("❌ %s failed: %v", c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{
		"success":   false,
		"error":     se.Message,
		"code":      se.Code,
		"retryable": se.Retryable(),
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success":   false,
		"error":     msg,
		"code":      services.CodeInvalidInput,
		"retryable": false,
	})
}
