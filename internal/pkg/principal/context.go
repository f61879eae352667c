package principal

import (
	"github.com/gofiber/fiber/v2"
)

// ContextKey is the fiber.Ctx locals key the request principal is stored under.
const ContextKey = "PRINCIPAL_CONTEXT"

// Context is everything the credit and generation endpoints need to know
// about the caller: who credits belong to and the hashed abuse-guard keys.
// The fingerprint keys are deliberately independent of the principal id.
type Context struct {
	Principal  Principal
	IsLoggedIn bool
	IPKey      string
	DeviceKey  string
}

// FromFiber reads the principal context set by the middleware. A request
// that skipped the middleware yields a zero context.
func FromFiber(c *fiber.Ctx) Context {
	if pc, ok := c.Locals(ContextKey).(Context); ok {
		return pc
	}
	return Context{}
}
