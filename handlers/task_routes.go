// handlers/task_routes.go
package handlers

import (
	"engagement-rewards-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupTaskRoutes(app *fiber.App, taskService *services.TaskService, ranks *services.RankTable) {
	app.Get("/tasks", func(c *fiber.Ctx) error {
		tasks, err := taskService.ListTasks(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"tasks": tasks})
	})

	app.Get("/ranks", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ranks": ranks.Bands()})
	})
}
