package router

import (
	"github.com/gofiber/fiber/v2"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// InstallRouter installs the HttpRouter first: it sets up the session store,
// the OAuth providers and the UserContext middleware the API routes rely on.
func InstallRouter(app *fiber.App, http *HttpRouter, api *ApiRouter) {
	setup(app, http, api)
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
