package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"golang.org/x/time/rate"

	"github.com/hangarlinks/hangarlinks/app/controllers"
	apiv1 "github.com/hangarlinks/hangarlinks/internal/api/v1"
	"github.com/hangarlinks/hangarlinks/internal/pkg/middleware"
)

type ApiRouter struct {
	ctrl      *controllers.Controllers
	server    *apiv1.APIServer
	validator fiber.Handler
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:          120,
		Expiration:   time.Minute,
		KeyGenerator: middleware.ClientIP,
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "HangarLinks API",
			"docs":    "/docs/api/v1",
		})
	})

	// One message every two seconds per user, with a small burst.
	conciergeLimiter := middleware.NewClientLimiter(rate.Every(2*time.Second), 5)
	api.Post("/concierge", middleware.RequireAPISessionAuth, middleware.RateLimit(conciergeLimiter), h.ctrl.Concierge.HandleConcierge)
	api.Get("/forecast", h.ctrl.Concierge.HandleForecast)
	api.Post("/dismiss-onboarding", h.ctrl.Main.HandleDismissOnboarding)

	v1 := api.Group("/v1")
	apiv1.RegisterHandlers(v1, h.server, h.validator, middleware.APIKeyAuthMiddleware())
}

func NewApiRouter(ctrl *controllers.Controllers, server *apiv1.APIServer, validator fiber.Handler) *ApiRouter {
	return &ApiRouter{ctrl: ctrl, server: server, validator: validator}
}
