package middleware

import (
	"github.com/ManuelReschke/SubsPortal/internal/pkg/session"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/usercontext"
	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware resolves the session into a UserContext for every
// request. Requests without a session are anonymous.
func UserContextMiddleware(c *fiber.Ctx) error {
	store := session.GetSessionStore()
	if store == nil {
		usercontext.Set(c, usercontext.UserContext{})
		return c.Next()
	}

	sess, err := store.Get(c)
	if err != nil {
		usercontext.Set(c, usercontext.UserContext{})
		return c.Next()
	}

	customerID, ok := sess.Get(usercontext.KeyCustomerID).(uint)
	if !ok || customerID == 0 {
		usercontext.Set(c, usercontext.UserContext{})
		return c.Next()
	}

	name, _ := sess.Get(usercontext.KeyName).(string)
	isAdmin, _ := sess.Get(usercontext.KeyIsAdmin).(bool)
	usercontext.Set(c, usercontext.UserContext{
		CustomerID: customerID,
		Name:       name,
		IsLoggedIn: true,
		IsAdmin:    isAdmin,
	})
	return c.Next()
}
