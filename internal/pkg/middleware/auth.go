package middleware

import (
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	icuser "github.com/hangarlinks/hangarlinks/internal/pkg/usercontext"
)

func loggedIn(c *fiber.Ctx) bool {
	return icuser.IsLoggedIn(c)
}

// RequireAuth ensures a logged-in web session; redirects to /login?next=<path> if missing.
func RequireAuth(c *fiber.Ctx) error {
	if !loggedIn(c) {
		return c.Redirect("/login?next="+url.QueryEscape(c.OriginalURL()), fiber.StatusSeeOther)
	}
	return c.Next()
}

// RequireAdmin ensures a logged-in admin; redirects otherwise.
func RequireAdmin(c *fiber.Ctx) error {
	if !loggedIn(c) {
		return c.Redirect("/login", fiber.StatusSeeOther)
	}
	if !icuser.GetUserContext(c).IsAdmin {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Admin access required."}).Redirect("/")
	}
	return c.Next()
}

// RequireAPISessionAuth ensures a logged-in session for API routes and returns JSON 401 instead of redirect.
func RequireAPISessionAuth(c *fiber.Ctx) error {
	if !loggedIn(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	}
	return c.Next()
}
