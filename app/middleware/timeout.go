package middleware

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RequestBudget bounds the work a request can trigger. Handlers read the
// deadline through c.UserContext().
func RequestBudget(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if timeout <= 0 {
			return c.Next()
		}
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()

		c.SetUserContext(ctx)
		return c.Next()
	}
}
