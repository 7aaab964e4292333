package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"

	"github.com/ManuelReschke/SubsPortal/app/controllers"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/env"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/middleware"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/session"
)

type HttpRouter struct {
	csrf fiber.Handler
}

func (h *HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// one csrf instance so tokens issued on admin pages validate on forms
	h.csrf = csrf.New(csrf.Config{
		KeyLookup:      "form:_csrf",
		ContextKey:     "csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		Expiration:     1 * time.Hour,
		CookieSecure:   !env.IsDev(),
		Storage:        session.NewRedisStorage(session.CSRFDatabase),
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/") || strings.HasPrefix(c.Path(), "/webhooks/")
		},
	})

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	controllers.InitializeAuthController()
	controllers.InitializeAdminController()
	controllers.InitializePaymentControllers()

	h.registerPublicRoutes(app)
	h.registerAdminRoutes(app)
	h.registerCSRFProtectedRoutes(app)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}

func loggedInMiddleware(c *fiber.Ctx) error {
	// UserContextMiddleware already set all user context
	return c.Next()
}
