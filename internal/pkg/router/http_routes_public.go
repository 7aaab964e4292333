package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/SubsPortal/app/controllers"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/middleware"
)

func (h *HttpRouter) registerPublicRoutes(app *fiber.App) {
	// Service catalogue
	app.Get("/services", loggedInMiddleware, controllers.HandleServices)

	// Auth
	app.Post("/logout", middleware.RequireAuth, controllers.HandleAuthLogout)

	// Gateway callbacks (no CSRF, signature-verified in controller)
	app.Post("/webhooks/mpesa/:bill/:sig", controllers.HandleMpesaCallback)
}
