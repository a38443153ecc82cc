// Package flash carries a message for the page rendered in this request.
// Redirects use github.com/sujit-baniya/flash instead.
package flash

import (
	"github.com/gofiber/fiber/v2"
	sflash "github.com/sujit-baniya/flash"
)

const FlashKey = "flash"

// Set attaches a message to the current response without a redirect, e.g.
// when a form is shown again with a validation error.
func Set(c *fiber.Ctx, message fiber.Map) {
	c.Locals(FlashKey, message)
}

// Get returns the message set by Set, or nil.
func Get(c *fiber.Ctx) fiber.Map {
	if m, ok := c.Locals(FlashKey).(fiber.Map); ok {
		return m
	}
	return nil
}

// Current prefers the in-request message over one carried by a redirect.
func Current(c *fiber.Ctx) fiber.Map {
	if m := Get(c); m != nil {
		return m
	}
	m := sflash.Get(c)
	if len(m) == 0 {
		return nil
	}
	return m
}
