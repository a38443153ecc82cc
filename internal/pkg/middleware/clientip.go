package middleware

import (
	"net"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ClientIP returns the visitor address behind Cloudflare or a reverse proxy.
// The first valid entry of X-Forwarded-For is the original client.
func ClientIP(c *fiber.Ctx) string {
	if ip := validIP(c.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	for _, part := range strings.Split(c.Get("X-Forwarded-For"), ",") {
		if ip := validIP(part); ip != "" {
			return ip
		}
	}
	if ip := validIP(c.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return c.IP()
}

func validIP(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || net.ParseIP(raw) == nil {
		return ""
	}
	return raw
}
