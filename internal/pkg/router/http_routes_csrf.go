package router

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/SubsPortal/app/controllers"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/env"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/middleware"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/usercontext"
)

// payLimiter caps explicit pay submissions per customer, PAY_LIMIT_PER_MINUTE
// (default 5) per minute.
func payLimiter() fiber.Handler {
	limit := env.GetEnvInt("PAY_LIMIT_PER_MINUTE", 5)
	if limit < 1 {
		limit = 5
	}
	return limiter.New(limiter.Config{
		Max:        limit,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			if id := usercontext.GetCustomerID(c); id != 0 {
				return fmt.Sprintf("pay:customer:%d", id)
			}
			return "pay:ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "rate_limited",
				"message": "Too many payment requests. Please wait a minute.",
			})
		},
	})
}

func (h *HttpRouter) registerCSRFProtectedRoutes(app *fiber.App) {
	group := app.Group("", cors.New(), h.csrf)
	group.Get("/login", loggedInMiddleware, controllers.HandleAuthPage)
	group.Post("/login", loggedInMiddleware, controllers.HandleAuthLogin)
	group.Get("/register", loggedInMiddleware, controllers.HandleAuthPage)
	group.Post("/register", loggedInMiddleware, controllers.HandleAuthRegister)

	// Customer subscriptions and bills
	group.Get("/user/subscriptions", middleware.RequireAuth, controllers.HandleUserSubscriptions)
	group.Post("/user/subscriptions", middleware.RequireAuth, controllers.HandleUserSubscribe)
	group.Get("/user/bills", middleware.RequireAuth, controllers.HandleUserBills)
	group.Get("/user/bills/:id/pay", middleware.RequireAuth, controllers.HandleUserBillPayPage)
	group.Post("/user/bills/:id/pay", middleware.RequireAuth, payLimiter(), controllers.HandleUserBillPay)
	group.Get("/user/reports/monthly", middleware.RequireAuth, controllers.HandleUserMonthlyReport)
}
