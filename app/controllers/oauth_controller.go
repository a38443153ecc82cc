package controllers

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/markbates/goth"
	gothfiber "github.com/shareed2k/goth_fiber"
	"gorm.io/gorm"

	"github.com/hangarlinks/hangarlinks/app/models"
	"github.com/hangarlinks/hangarlinks/internal/pkg/database"
)

var usernameJunk = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// HandleOAuthCallback completes the provider flow and logs the user in.
// New identities become renter accounts; a matching email links to the existing account.
func (ac *AuthController) HandleOAuthCallback(c *fiber.Ctx) error {
	u, err := gothfiber.CompleteUserAuth(c)
	if err != nil {
		log.Warnf("[OAuth] callback failed: %v", err)
		return redirectError(c, "Sign-in with that provider failed. Please try again.", "/login")
	}

	db := database.GetDB()
	if db == nil {
		return renderError(c, fiber.StatusServiceUnavailable, "Sign-in is temporarily unavailable.")
	}

	var pa models.ProviderAccount
	res := db.Where("provider = ? AND provider_user_id = ?", u.Provider, u.UserID).First(&pa)

	var appUser *models.User
	switch {
	case errors.Is(res.Error, gorm.ErrRecordNotFound):
		appUser, err = ac.userForIdentity(u)
		if err != nil {
			log.Errorf("[OAuth] account for %s/%s: %v", u.Provider, u.UserID, err)
			return renderError(c, fiber.StatusInternalServerError, "Could not create your account.")
		}
		pa = models.ProviderAccount{
			UserID:         appUser.ID,
			Provider:       u.Provider,
			ProviderUserID: u.UserID,
			Email:          u.Email,
		}
		pa.SetTokens(u.AccessToken, u.RefreshToken, u.ExpiresAt)
		if err := db.Create(&pa).Error; err != nil {
			log.Errorf("[OAuth] link provider %s: %v", u.Provider, err)
			return renderError(c, fiber.StatusInternalServerError, "Could not link your account.")
		}
	case res.Error == nil:
		pa.SetTokens(u.AccessToken, u.RefreshToken, u.ExpiresAt)
		if err := db.Save(&pa).Error; err != nil {
			log.Errorf("[OAuth] update tokens: %v", err)
			return renderError(c, fiber.StatusInternalServerError, "Could not update your account.")
		}
		appUser, err = ac.repos.User.GetByID(pa.UserID)
		if err != nil {
			log.Errorf("[OAuth] linked user %d: %v", pa.UserID, err)
			return renderError(c, fiber.StatusInternalServerError, "Linked account not found.")
		}
	default:
		log.Errorf("[OAuth] lookup: %v", res.Error)
		return renderError(c, fiber.StatusInternalServerError, "Something went wrong. Please try again.")
	}

	if err := startSession(c, appUser, ac.markAdmin); err != nil {
		log.Errorf("[OAuth] session for user %d: %v", appUser.ID, err)
		return renderError(c, fiber.StatusInternalServerError, "Could not start your session.")
	}
	if err := ac.repos.User.UpdateFields(appUser.ID, map[string]interface{}{"last_login_at": ac.now()}); err != nil {
		log.Warnf("[OAuth] last login for user %d: %v", appUser.ID, err)
	}

	// HTMX boosted flows need a full page load.
	c.Set("HX-Redirect", "/")
	return redirectSuccess(c, "Logged in successfully!", "/")
}

func (ac *AuthController) userForIdentity(u goth.User) (*models.User, error) {
	if u.Email != "" {
		existing, err := ac.repos.User.GetByEmail(u.Email)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	email := u.Email
	if email == "" {
		email = fmt.Sprintf("%s_%s@%s.oauth.local", u.Provider, u.UserID, u.Provider)
	}
	username, err := ac.freeUsername(firstNonEmpty(u.NickName, u.Name, strings.Split(u.Email, "@")[0], "pilot"))
	if err != nil {
		return nil, err
	}
	// The password is never used; provider users log in through the provider.
	user, err := models.CreateUser(username, email, fmt.Sprintf("oauth_%d", time.Now().UnixNano()), models.ROLE_RENTER)
	if err != nil {
		return nil, err
	}
	if _, err := user.EnsureReferralCode(); err != nil {
		return nil, err
	}
	if err := ac.repos.User.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

// freeUsername cleans a display name and appends a counter until it is unused.
func (ac *AuthController) freeUsername(name string) (string, error) {
	base := usernameJunk.ReplaceAllString(name, "")
	if len(base) < 3 {
		base = "pilot"
	}
	if len(base) > 70 {
		base = base[:70]
	}
	candidate := base
	for i := 2; i < 1000; i++ {
		taken, err := ac.repos.User.UsernameExists(candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}
	return "", errors.New("no free username for " + base)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
