package controllers

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	gothfiber "github.com/shareed2k/goth_fiber"
	"gorm.io/gorm"

	"github.com/portraitforge/portraitforge/app/models"
	"github.com/portraitforge/portraitforge/internal/pkg/database"
	"github.com/portraitforge/portraitforge/internal/pkg/session"
)

// HandleOAuthBegin redirects the visitor to the configured provider.
func HandleOAuthBegin(c *fiber.Ctx) error {
	return gothfiber.BeginAuthHandler(c)
}

// HandleOAuthCallback completes the provider flow and logs the user in.
// If the visitor generated artworks as a guest before signing in, their
// guest resources and free-tier consumption are merged into the account.
func HandleOAuthCallback(c *fiber.Ctx) error {
	u, err := gothfiber.CompleteUserAuth(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString(fmt.Sprintf("OAuth failed: %v", err))
	}

	db := database.GetDB()

	appUser, err := models.FindUserByOAuth(db, u.Provider, u.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Optional email match if provided
		var existing models.User
		if u.Email != "" {
			_ = db.Where("email = ?", u.Email).First(&existing).Error
		}
		if existing.ID != 0 {
			existing.OAuthProvider = u.Provider
			existing.OAuthProviderID = u.UserID
			if err := db.Save(&existing).Error; err != nil {
				return c.Status(fiber.StatusInternalServerError).SendString(fmt.Sprintf("link provider failed: %v", err))
			}
			appUser = &existing
		} else {
			// New user; password is a random placeholder since validation requires one
			placeholder := fmt.Sprintf("oauth_%d", time.Now().UnixNano())
			hash, _ := models.HashPassword(placeholder)
			email := u.Email
			if email == "" {
				// Ensure unique, non-empty email to satisfy the unique index
				email = fmt.Sprintf("%s_%s@%s.oauth.local", u.Provider, u.UserID, u.Provider)
			}
			newUser := models.User{
				Name:            firstNonEmpty(u.Name, u.NickName, u.Email, "User"),
				Email:           email,
				Password:        hash,
				AvatarURL:       u.AvatarURL,
				Status:          models.STATUS_ACTIVE,
				OAuthProvider:   u.Provider,
				OAuthProviderID: u.UserID,
			}
			if err := db.Create(&newUser).Error; err != nil {
				return c.Status(fiber.StatusInternalServerError).SendString(fmt.Sprintf("create user failed: %v", err))
			}
			appUser = &newUser
		}
	} else if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString(fmt.Sprintf("db error: %v", err))
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("session init failed")
	}

	// Merge any pre-login guest activity into the account before the
	// session flips to the user identity.
	if guestID, ok := sess.Get(GUEST_ID).(string); ok && guestID != "" {
		if err := accountLinker.Link(appUser.ID, guestID); err != nil {
			log.Errorf("[Auth] Guest link failed for user %d: %v", appUser.ID, err)
		}
		sess.Delete(GUEST_ID)
	}

	sess.Set(AUTH_KEY, true)
	sess.Set(USER_ID, appUser.ID)
	sess.Set(USER_NAME, appUser.Name)
	if err := sess.Save(); err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("session save failed")
	}

	_ = db.Model(appUser).UpdateColumn("last_login_at", time.Now()).Error

	return c.Redirect("/", fiber.StatusSeeOther)
}

// HandleLogout clears the session and returns the visitor to guest status.
func HandleLogout(c *fiber.Ctx) error {
	sess, err := session.GetSessionStore().Get(c)
	if err == nil {
		if err := sess.Destroy(); err != nil {
			log.Warnf("[Auth] Session destroy failed: %v", err)
		}
	}
	return c.Redirect("/", fiber.StatusSeeOther)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
