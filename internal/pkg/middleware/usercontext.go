package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/hangarlinks/hangarlinks/app/models"
	"github.com/hangarlinks/hangarlinks/internal/pkg/database"
	"github.com/hangarlinks/hangarlinks/internal/pkg/session"
	"github.com/hangarlinks/hangarlinks/internal/pkg/usercontext"
)

// UserContextMiddleware resolves the logged-in user from the session for every request.
func UserContextMiddleware(c *fiber.Ctx) error {
	// Goth keeps its own session store on /auth/*.
	if strings.HasPrefix(c.Path(), "/auth/") {
		return c.Next()
	}

	store := session.GetSessionStore()
	if store == nil {
		usercontext.SetUserContext(c, usercontext.UserContext{})
		return c.Next()
	}

	sess, err := store.Get(c)
	if err != nil {
		usercontext.SetUserContext(c, usercontext.UserContext{})
		return c.Next()
	}

	userID, ok := sess.Get(usercontext.SessionUserID).(uint)
	if !ok || userID == 0 {
		usercontext.SetUserContext(c, usercontext.UserContext{})
		return c.Next()
	}

	username, _ := sess.Get(usercontext.SessionUserName).(string)
	role, _ := sess.Get(usercontext.SessionRole).(string)
	isAdmin, _ := sess.Get(usercontext.SessionIsAdmin).(bool)

	// Plan is cached in the session and refreshed from the users table on a miss.
	plan, _ := sess.Get(usercontext.SessionPlan).(string)
	if plan == "" {
		plan = models.TIER_FREE
		if db := database.GetDB(); db != nil {
			var u models.User
			if err := db.Select("id", "subscription_tier", "is_premium").First(&u, userID).Error; err == nil {
				plan = u.PlanTier()
			}
		}
		sess.Set(usercontext.SessionPlan, plan)
		_ = sess.Save()
	}

	usercontext.SetUserContext(c, usercontext.UserContext{
		UserID:     userID,
		Username:   username,
		Role:       role,
		IsLoggedIn: true,
		IsAdmin:    isAdmin,
		Plan:       plan,
	})

	return c.Next()
}
