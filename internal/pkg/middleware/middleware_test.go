package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/hangarlinks/hangarlinks/internal/pkg/usercontext"
)

func withUser(uc usercontext.UserContext) fiber.Handler {
	return func(c *fiber.Ctx) error {
		usercontext.SetUserContext(c, uc)
		return c.Next()
	}
}

func TestRequireAuthRedirectsWithNext(t *testing.T) {
	app := fiber.New()
	app.Get("/my-listings", withUser(usercontext.UserContext{}), RequireAuth, func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/my-listings", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login?next=%2Fmy-listings", resp.Header.Get("Location"))
}

func TestRequireAuthPassesLoggedIn(t *testing.T) {
	app := fiber.New()
	app.Get("/", withUser(usercontext.UserContext{UserID: 1, IsLoggedIn: true}), RequireAuth, func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireAPISessionAuthReturnsJSON401(t *testing.T) {
	app := fiber.New()
	app.Post("/api/concierge", withUser(usercontext.UserContext{}), RequireAPISessionAuth, func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/concierge", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRateLimitRejectsBurst(t *testing.T) {
	limiter := NewClientLimiter(rate.Limit(0.001), 2)
	app := fiber.New()
	app.Post("/chat", RateLimit(limiter), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/chat", nil), -1)
		require.NoError(t, err)
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{200, 200, fiber.StatusTooManyRequests}, codes)
}

func TestClientLimiterKeysAreIndependent(t *testing.T) {
	l := NewClientLimiter(rate.Limit(0.001), 1)
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"cloudflare wins", map[string]string{"CF-Connecting-IP": "203.0.113.7", "X-Forwarded-For": "198.51.100.1"}, "203.0.113.7"},
		{"first forwarded", map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.2"}, "198.51.100.1"},
		{"skips junk", map[string]string{"X-Forwarded-For": "unknown, 2001:db8::1"}, "2001:db8::1"},
		{"real ip", map[string]string{"X-Real-IP": "192.0.2.44"}, "192.0.2.44"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			var got string
			app.Get("/", func(c *fiber.Ctx) error {
				got = ClientIP(c)
				return nil
			})
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			_, err := app.Test(req, -1)
			require.NoError(t, err)
			if got != tt.want {
				t.Fatalf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
