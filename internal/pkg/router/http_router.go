package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/hangarlinks/hangarlinks/app/controllers"
	"github.com/hangarlinks/hangarlinks/internal/pkg/metrics"
	"github.com/hangarlinks/hangarlinks/internal/pkg/middleware"
	"github.com/hangarlinks/hangarlinks/internal/pkg/oauth"
	"github.com/hangarlinks/hangarlinks/internal/pkg/session"
)

type HttpRouter struct {
	ctrl *controllers.Controllers
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	session.NewSessionStore()
	oauth.Setup()

	// UserContext has to run before every route, including the API.
	app.Use(middleware.UserContextMiddleware)
	app.Use(metrics.Middleware())

	h.registerPublicRoutes(app)
	h.registerCSRFProtectedRoutes(app)
}

func NewHttpRouter(ctrl *controllers.Controllers) *HttpRouter {
	return &HttpRouter{ctrl: ctrl}
}
