package reward

import (
	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, engine *Engine, authMiddleware fiber.Handler) {
	r.Get("/streak", authMiddleware, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		if userID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "user required")
		}
		state, err := engine.Streak(c.Context(), userID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(state)
	})
}
