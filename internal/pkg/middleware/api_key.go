package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/hangarlinks/hangarlinks/app/models"
	"github.com/hangarlinks/hangarlinks/app/repository"
	"github.com/hangarlinks/hangarlinks/internal/pkg/usercontext"
)

// APIKeyAuthMiddleware guards the public API with the global repositories.
func APIKeyAuthMiddleware() fiber.Handler {
	repos := repository.GetGlobalRepositories()
	return APIKeyAuth(repos.User, repos.UserSettings, time.Now)
}

// APIKeyAuth accepts a key from X-API-Key or an "Authorization: Bearer"
// header and runs the request as the key's owner.
func APIKeyAuth(users repository.UserRepository, settings repository.UserSettingsRepository, now func() time.Time) fiber.Handler {
	deny := func(c *fiber.Ctx, msg string) error {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": msg})
	}

	return func(c *fiber.Ctx) error {
		key := presentedAPIKey(c)
		if key == "" {
			return deny(c, "Missing API key")
		}

		user, us, err := users.GetByAPIKeyHash(models.HashAPIKey(key))
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return deny(c, "Invalid API key")
		case err != nil:
			log.Errorf("[APIKey] lookup failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "internal_server_error",
				"message": "API key verification failed",
			})
		}

		if err := settings.TouchAPIKey(us.ID, now()); err != nil {
			log.Warnf("[APIKey] user %d: last-used not recorded: %v", user.ID, err)
		}

		usercontext.SetUserContext(c, usercontext.UserContext{
			UserID:     user.ID,
			Username:   user.Username,
			Email:      user.Email,
			Role:       user.Role,
			IsLoggedIn: true,
			IsAdmin:    user.IsAdmin,
			Plan:       user.PlanTier(),
		})
		return c.Next()
	}
}

func presentedAPIKey(c *fiber.Ctx) string {
	if key := strings.TrimSpace(c.Get("X-API-Key")); key != "" {
		return key
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(c.Get(fiber.HeaderAuthorization)), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
