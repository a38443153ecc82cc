package usercontext

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUserContextDefaultsToAnonymous(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		assert.Equal(t, UserContext{}, GetUserContext(c))
		assert.False(t, IsLoggedIn(c))
		assert.Equal(t, uint(0), GetUserID(c))
		return nil
	})
	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
}

func TestSetUserContext(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		SetUserContext(c, UserContext{UserID: 7, Username: "maverick", Role: "owner", IsLoggedIn: true, Plan: "premium"})

		uc := GetUserContext(c)
		assert.True(t, IsLoggedIn(c))
		assert.Equal(t, uint(7), GetUserID(c))
		assert.True(t, uc.IsOwner())
		assert.True(t, uc.IsPremium())
		return nil
	})
	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
}
