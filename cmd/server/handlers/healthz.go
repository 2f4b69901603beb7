package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

const HealthzTimeout = 5 * time.Second

// Pinger is a note store that can report its own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Healthz returns a handler reporting whether the note store answers. driver
// names the store in the response body.
func Healthz(store Pinger, driver string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), HealthzTimeout)
		defer cancel()

		if store == nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"status": "down",
				"store":  driver,
				"error":  "store not initialized",
			})
		}

		if err := store.Ping(ctx); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"status": "down",
				"store":  driver,
				"error":  err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"status": "ok",
			"store":  driver,
		})
	}
}
