package controllers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/hangarlinks/hangarlinks/app/models"
	"github.com/hangarlinks/hangarlinks/app/repository"
	"github.com/hangarlinks/hangarlinks/internal/pkg/env"
	"github.com/hangarlinks/hangarlinks/internal/pkg/flash"
	"github.com/hangarlinks/hangarlinks/internal/pkg/hcaptcha"
	"github.com/hangarlinks/hangarlinks/internal/pkg/middleware"
	"github.com/hangarlinks/hangarlinks/internal/pkg/oauth"
	"github.com/hangarlinks/hangarlinks/internal/pkg/session"
	"github.com/hangarlinks/hangarlinks/internal/pkg/usercontext"
)

// ReferralBonusPoints go to the referrer when a referred user signs up.
const ReferralBonusPoints = 100

const MinPasswordLength = 6

type AuthController struct {
	repos   *repository.Repositories
	captcha *hcaptcha.Verifier
	now     func() time.Time
}

func NewAuthController(repos *repository.Repositories, captcha *hcaptcha.Verifier) *AuthController {
	return &AuthController{repos: repos, captcha: captcha, now: time.Now}
}

type loginForm struct {
	Email    string `form:"email"`
	Password string `form:"password"`
	Next     string `form:"next"`
}

type registerForm struct {
	Username string `form:"username"`
	Email    string `form:"email"`
	Password string `form:"password"`
	Role     string `form:"role"`
	Ref      string `form:"ref"`
}

func (ac *AuthController) markAdmin(id uint) error {
	return ac.repos.User.UpdateFields(id, map[string]interface{}{"is_admin": true})
}

func (ac *AuthController) HandleLogin(c *fiber.Ctx) error {
	if usercontext.IsLoggedIn(c) {
		return c.Redirect("/", fiber.StatusSeeOther)
	}
	if c.Method() != fiber.MethodPost {
		return render(c, "auth/login", "Log in", fiber.Map{
			"Next":      c.Query("next"),
			"Providers": oauth.Configured(),
		})
	}

	var form loginForm
	if err := c.BodyParser(&form); err != nil {
		return redirectError(c, "Invalid email or password", "/login")
	}
	email := strings.ToLower(strings.TrimSpace(form.Email))

	user, err := ac.repos.User.GetByEmail(email)
	if err != nil || !user.CheckPassword(form.Password) {
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Errorf("[Auth] login lookup for %s: %v", email, err)
		}
		flash.Set(c, fiber.Map{"type": "error", "message": "Invalid email or password"})
		c.Status(fiber.StatusUnauthorized)
		return render(c, "auth/login", "Log in", fiber.Map{
			"Next":      form.Next,
			"Email":     email,
			"Providers": oauth.Configured(),
		})
	}

	if err := startSession(c, user, ac.markAdmin); err != nil {
		log.Errorf("[Auth] session for user %d: %v", user.ID, err)
		return renderError(c, fiber.StatusInternalServerError, "Could not start your session.")
	}
	if err := ac.repos.User.UpdateFields(user.ID, map[string]interface{}{"last_login_at": ac.now()}); err != nil {
		log.Warnf("[Auth] last login for user %d: %v", user.ID, err)
	}
	return redirectSuccess(c, "Logged in successfully!", safeNext(form.Next))
}

func (ac *AuthController) HandleRegister(c *fiber.Ctx) error {
	if usercontext.IsLoggedIn(c) {
		return c.Redirect("/", fiber.StatusSeeOther)
	}
	if c.Method() != fiber.MethodPost {
		return ac.renderRegister(c, registerForm{Ref: c.Query("ref")})
	}

	var form registerForm
	if err := c.BodyParser(&form); err != nil {
		return redirectError(c, "Please fill in all fields.", "/register")
	}

	if ac.captcha != nil && ac.captcha.Enabled() {
		if err := ac.captcha.Verify(c.UserContext(), c.FormValue("h-captcha-response"), middleware.ClientIP(c)); err != nil {
			log.Warnf("[Auth] captcha rejected: %v", err)
			return redirectError(c, "Please complete the captcha.", "/register")
		}
	}

	email := strings.ToLower(strings.TrimSpace(form.Email))
	username := strings.TrimSpace(form.Username)
	if exists, err := ac.repos.User.EmailExists(email); err != nil {
		return handleRepoError(c, "Auth", err)
	} else if exists {
		return redirectError(c, "Email already registered", "/register")
	}
	if exists, err := ac.repos.User.UsernameExists(username); err != nil {
		return handleRepoError(c, "Auth", err)
	} else if exists {
		return redirectError(c, "Callsign/Username already taken", "/register")
	}

	if len(form.Password) < MinPasswordLength {
		flash.Set(c, fiber.Map{"type": "error", "message": fmt.Sprintf("Password must be at least %d characters.", MinPasswordLength)})
		c.Status(fiber.StatusUnprocessableEntity)
		return ac.renderRegister(c, form)
	}
	user, err := models.CreateUser(username, email, form.Password, form.Role)
	if err != nil {
		flash.Set(c, fiber.Map{"type": "error", "message": validationMessage(err)})
		c.Status(fiber.StatusUnprocessableEntity)
		return ac.renderRegister(c, form)
	}
	if _, err := user.EnsureReferralCode(); err != nil {
		log.Warnf("[Auth] referral code: %v", err)
	}
	referrer := ac.referrer(form.Ref)
	if referrer != nil {
		user.ReferredByID = &referrer.ID
	}
	if err := ac.repos.User.Create(user); err != nil {
		return handleRepoError(c, "Auth", err)
	}
	if referrer != nil {
		if err := ac.repos.User.AddPoints(referrer.ID, ReferralBonusPoints); err != nil {
			log.Warnf("[Auth] referral bonus for user %d: %v", referrer.ID, err)
		}
	}

	if err := startSession(c, user, ac.markAdmin); err != nil {
		log.Errorf("[Auth] session for new user %d: %v", user.ID, err)
		return redirectSuccess(c, "Account created. Please log in.", "/login")
	}
	if err := session.SetSessionValue(c, SessionShowOnboarding, "1"); err != nil {
		log.Warnf("[Auth] onboarding flag: %v", err)
	}
	return redirectSuccess(c, "Account created successfully!", "/")
}

func (ac *AuthController) renderRegister(c *fiber.Ctx, form registerForm) error {
	return render(c, "auth/register", "Sign up", fiber.Map{
		"Form":            form,
		"HCaptchaSiteKey": env.GetEnv("HCAPTCHA_SITEKEY", ""),
		"Providers":       oauth.Configured(),
	})
}

// referrer resolves a referral code. Unknown codes are ignored.
func (ac *AuthController) referrer(code string) *models.User {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil
	}
	u, err := ac.repos.User.GetByReferralCode(code)
	if err != nil {
		return nil
	}
	return u
}

func (ac *AuthController) HandleLogout(c *fiber.Ctx) error {
	if store := session.GetSessionStore(); store != nil {
		if sess, err := store.Get(c); err == nil {
			if err := sess.Destroy(); err != nil {
				log.Warnf("[Auth] destroy session: %v", err)
			}
		}
	}
	return redirectSuccess(c, "Logged out successfully", "/")
}

// validationMessage turns validator errors into one readable sentence.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Please check your input."
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required.", fe.Field())
	case "email":
		return "Please enter a valid email address."
	case "min":
		return fmt.Sprintf("%s must be at least %s characters.", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters.", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s is invalid.", fe.Field())
}
