package tracking

import (
	"errors"
	"strconv"

	"backend-runstr/internal/streak"
	"backend-runstr/internal/workout"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Use(authMiddleware, func(c *fiber.Ctx) error {
		if userID(c) == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "user required")
		}
		return c.Next()
	})

	r.Post("/sessions", func(c *fiber.Ctx) error {
		var req startRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}
		state, err := svc.Start(userID(c), req.ActivityKind)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(state)
	})

	r.Get("/sessions/current", func(c *fiber.Ctx) error {
		state, err := svc.Current(userID(c))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(state)
	})

	r.Post("/sessions/current/pause", func(c *fiber.Ctx) error {
		state, err := svc.Pause(userID(c))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(state)
	})

	r.Post("/sessions/current/resume", func(c *fiber.Ctx) error {
		state, err := svc.Resume(userID(c))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(state)
	})

	r.Post("/sessions/current/metrics", func(c *fiber.Ctx) error {
		var req workout.MetricUpdate
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		resp, err := svc.RecordMetrics(userID(c), req)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(resp)
	})

	r.Post("/sessions/current/location", func(c *fiber.Ctx) error {
		var req locationRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.Lat < -90 || req.Lat > 90 || req.Lng < -180 || req.Lng > 180 {
			return fiber.NewError(fiber.StatusBadRequest, "lat/lng out of range")
		}
		resp, err := svc.RecordLocation(userID(c), workout.Fix{
			Lat:               req.Lat,
			Lng:               req.Lng,
			SpeedMetersPerSec: req.SpeedMps,
			RecordedAt:        req.RecordedAt,
		})
		if err != nil {
			return httpError(err)
		}
		return c.JSON(resp)
	})

	r.Post("/sessions/current/health", func(c *fiber.Ctx) error {
		var req workout.HealthSample
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		resp, err := svc.RecordHealth(userID(c), req)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(resp)
	})

	r.Post("/sessions/current/end", func(c *fiber.Ctx) error {
		var req endRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}
		res, err := svc.End(c.UserContext(), userID(c), req.Timezone)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(res)
	})

	r.Get("/", func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit"))
		workouts, err := svc.History(c.UserContext(), userID(c), limit)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(workouts)
	})
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

func httpError(err error) error {
	switch {
	case errors.Is(err, workout.ErrNoSession):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, workout.ErrInvalidState):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrBadInput):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, streak.ErrInvalidInput):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
