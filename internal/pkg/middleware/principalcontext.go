package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/portraitforge/portraitforge/app/controllers"
	"github.com/portraitforge/portraitforge/internal/pkg/abuseguard"
	"github.com/portraitforge/portraitforge/internal/pkg/principal"
	"github.com/portraitforge/portraitforge/internal/pkg/session"
)

// NewPrincipalContext builds the middleware that resolves every request to a
// principal: the signed-in user from the session, or a guest id minted into
// the session on first contact. It also derives the hashed abuse-guard keys
// here so raw IP and device values never travel further into the app.
func NewPrincipalContext(guard *abuseguard.Guard) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Goth uses its own fiber session store on OAuth routes; skip our
		// session handling there to prevent cross-store collisions.
		if strings.HasPrefix(c.Path(), "/auth/") {
			return c.Next()
		}

		pc := principal.Context{
			IPKey:     guard.Fingerprint(c.IP()),
			DeviceKey: guard.Fingerprint(c.Get("X-Device-Fingerprint")),
		}

		sess, err := session.GetSessionStore().Get(c)
		if err != nil {
			// No usable session: treat as an anonymous guest without identity.
			c.Locals(principal.ContextKey, pc)
			return c.Next()
		}

		if userID, ok := sess.Get(controllers.USER_ID).(uint); ok && userID != 0 {
			pc.Principal = principal.User(userID)
			pc.IsLoggedIn = true
			c.Locals(principal.ContextKey, pc)
			return c.Next()
		}

		guestID, _ := sess.Get(controllers.GUEST_ID).(string)
		if guestID == "" {
			guestID = uuid.New().String()
			sess.Set(controllers.GUEST_ID, guestID)
			if err := sess.Save(); err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "session_error",
				})
			}
		}
		pc.Principal = principal.Guest(guestID)
		c.Locals(principal.ContextKey, pc)
		return c.Next()
	}
}
