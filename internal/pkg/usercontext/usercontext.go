package usercontext

import "github.com/gofiber/fiber/v2"

// UserContext is the logged-in customer of a request.
type UserContext struct {
	CustomerID uint   `json:"customer_id"`
	Name       string `json:"name"`
	IsLoggedIn bool   `json:"is_logged_in"`
	IsAdmin    bool   `json:"is_admin"`
}

// GetUserContext returns the request's user context, or an anonymous one.
func GetUserContext(c *fiber.Ctx) UserContext {
	if uc, ok := c.Locals(LocalsKey).(UserContext); ok {
		return uc
	}
	return UserContext{}
}

// Set stores uc in Locals together with the flags the guards read.
func Set(c *fiber.Ctx, uc UserContext) {
	c.Locals(LocalsKey, uc)
	c.Locals(KeyFromProtected, uc.IsLoggedIn)
	c.Locals(KeyIsAdmin, uc.IsAdmin)
}

func IsLoggedIn(c *fiber.Ctx) bool {
	return GetUserContext(c).IsLoggedIn
}

func IsAdmin(c *fiber.Ctx) bool {
	return GetUserContext(c).IsAdmin
}

// GetCustomerID returns the current customer's ID, or 0 if not logged in
func GetCustomerID(c *fiber.Ctx) uint {
	return GetUserContext(c).CustomerID
}
