package usercontext

// Shared Locals/session keys used across controllers and middlewares
const (
	LocalsKey        = "USER_CONTEXT"
	KeyCustomerID    = "customer_id"
	KeyName          = "name"
	KeyIsAdmin       = "isAdmin"
	KeyFromProtected = "from_protected"
)
