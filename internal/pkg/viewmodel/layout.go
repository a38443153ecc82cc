package viewmodel

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/hangarlinks/hangarlinks/internal/pkg/env"
	"github.com/hangarlinks/hangarlinks/internal/pkg/flash"
	"github.com/hangarlinks/hangarlinks/internal/pkg/usercontext"
)

// Layout is what the base layout needs on every page.
type Layout struct {
	Title string
	User  usercontext.UserContext
	Flash fiber.Map
	CSRF  string
	Year  int
	IsDev bool
}

// NewLayout collects the per-request layout data. The flash is consumed.
func NewLayout(c *fiber.Ctx, title string) Layout {
	csrf, _ := c.Locals("csrf").(string)
	return Layout{
		Title: title,
		User:  usercontext.GetUserContext(c),
		Flash: flash.Current(c),
		CSRF:  csrf,
		Year:  time.Now().Year(),
		IsDev: env.IsDev(),
	}
}

// FlashType maps the flash onto a css modifier.
func (l Layout) FlashType() string {
	if l.Flash == nil {
		return ""
	}
	if t, ok := l.Flash["type"].(string); ok && t != "" {
		return t
	}
	if e, ok := l.Flash["error"].(bool); ok && e {
		return "error"
	}
	return "success"
}

// FlashMessage returns the message text, or "".
func (l Layout) FlashMessage() string {
	if l.Flash == nil {
		return ""
	}
	msg, _ := l.Flash["message"].(string)
	return msg
}
