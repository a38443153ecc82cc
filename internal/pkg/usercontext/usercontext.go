// Package usercontext carries the resolved user of a request in Fiber locals.
package usercontext

import "github.com/gofiber/fiber/v2"

// Session keys written at login and read back by the UserContext middleware.
const (
	SessionUserID   = "USER_ID"
	SessionUserName = "USER_NAME"
	SessionIsAdmin  = "USER_IS_ADMIN"
	SessionRole     = "USER_ROLE"
	SessionPlan     = "user_plan"
)

type localsKey struct{}

// UserContext is who is making the request. The zero value is an
// anonymous visitor.
type UserContext struct {
	UserID     uint   `json:"user_id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	IsLoggedIn bool   `json:"is_logged_in"`
	IsAdmin    bool   `json:"is_admin"`
	Plan       string `json:"plan"`
}

func (u UserContext) IsOwner() bool   { return u.Role == "owner" }
func (u UserContext) IsPremium() bool { return u.Plan == "premium" }

func GetUserContext(c *fiber.Ctx) UserContext {
	uc, _ := c.Locals(localsKey{}).(UserContext)
	return uc
}

func SetUserContext(c *fiber.Ctx, uc UserContext) {
	c.Locals(localsKey{}, uc)
}

func IsLoggedIn(c *fiber.Ctx) bool { return GetUserContext(c).IsLoggedIn }
func GetUserID(c *fiber.Ctx) uint  { return GetUserContext(c).UserID }
