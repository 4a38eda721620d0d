// handlers/user_routes.go
package handlers

import (
	"engagement-rewards-system/middleware"
	"engagement-rewards-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func SetupUserRoutes(app *fiber.App, userService *services.UserService, completionService *services.TaskCompletionService) {
	user := app.Group("/user", middleware.UserContextMiddleware())

	// First contact creates the user and applies the referral code, if any.
	user.Post("/data", func(c *fiber.Ctx) error {
		var req struct {
			ReferralCode string `json:"referral_code"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return badRequest(c, "invalid JSON")
			}
		}

		u, created, err := userService.InitiateOrFetchUser(c.UserContext(), middleware.UserID(c), req.ReferralCode)
		if err != nil {
			return respondError(c, err)
		}
		snap, err := userService.Snapshot(c.UserContext(), u.ExternalID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"success": true,
			"created": created,
			"user":    snap,
		})
	})

	user.Get("/activities", func(c *fiber.Ctx) error {
		snap, err := userService.Snapshot(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"success":            true,
			"activities":         snap.Activities,
			"referral_code":      snap.ReferralCode,
			"referral_count":     snap.ReferralCount,
			"max_referral_depth": snap.MaxReferralDepth,
		})
	})

	user.Get("/referral-code", func(c *fiber.Ctx) error {
		code, err := userService.GetReferralCode(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"referral_code": code})
	})

	user.Post("/tasks/:id/achieve", func(c *fiber.Ctx) error {
		taskID := c.Params("id")
		if _, err := uuid.Parse(taskID); err != nil {
			return badRequest(c, "invalid task ID")
		}
		state, err := completionService.MarkAchieved(c.UserContext(), middleware.UserID(c), taskID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "task_id": taskID, "state": state})
	})

	user.Post("/tasks/:id/verify", func(c *fiber.Ctx) error {
		taskID := c.Params("id")
		if _, err := uuid.Parse(taskID); err != nil {
			return badRequest(c, "invalid task ID")
		}
		var req struct {
			Handle string `json:"handle"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid JSON")
		}
		result, err := completionService.VerifyAndComplete(c.UserContext(), middleware.UserID(c), taskID, req.Handle)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "result": result})
	})
}
