package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/SubsPortal/app/controllers"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/middleware"
)

func (h *HttpRouter) registerAdminRoutes(app *fiber.App) {
	adminGroup := app.Group("/admin", middleware.RequireAdmin, h.csrf)

	adminGroup.Get("/dashboard", controllers.HandleAdminDashboard)

	// Bills + reports
	adminGroup.Get("/bills", controllers.HandleAdminBills)
	adminGroup.Post("/bills/:id/paid", controllers.HandleAdminBillMarkPaid)
	adminGroup.Post("/bills/:id/unpaid", controllers.HandleAdminBillMarkUnpaid)
	adminGroup.Get("/reports/monthly", controllers.HandleAdminMonthlyReport)

	// Service catalogue
	adminGroup.Get("/services", controllers.HandleAdminServices)
	adminGroup.Post("/services", controllers.HandleAdminServiceStore)
	adminGroup.Post("/services/:id", controllers.HandleAdminServiceUpdate)
	adminGroup.Post("/services/:id/toggle", controllers.HandleAdminServiceToggle)
	adminGroup.Post("/services/:id/delete", controllers.HandleAdminServiceDelete)

	// Customers
	adminGroup.Get("/customers", controllers.HandleAdminCustomers)
	adminGroup.Get("/customers/:id", controllers.HandleAdminCustomerShow)
	adminGroup.Get("/subscriptions", controllers.HandleAdminSubscriptions)

	// Admin accounts
	adminGroup.Get("/admins", controllers.HandleAdminAdmins)
	adminGroup.Post("/admins", controllers.HandleAdminAdminStore)
	adminGroup.Post("/admins/:id", controllers.HandleAdminAdminUpdate)
	adminGroup.Post("/admins/:id/delete", controllers.HandleAdminAdminDelete)

	// Payment monitor
	adminGroup.Get("/payments/attempts", controllers.HandleAdminPaymentAttempts)
	adminGroup.Post("/payments/attempts/:id/delete", controllers.HandleAdminPaymentAttemptDelete)
	adminGroup.Get("/callbacks", controllers.HandleAdminCallbacks)
	adminGroup.Get("/callbacks/:id", controllers.HandleAdminCallbackShow)
}
