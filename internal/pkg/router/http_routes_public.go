package router

import (
	"github.com/gofiber/fiber/v2"
	gothfiber "github.com/shareed2k/goth_fiber"
)

// registerPublicRoutes holds the routes that never render a form: health checks,
// redirects and machine callbacks. They run without CSRF.
func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	app.Get("/health", h.ctrl.Main.HandleHealth)

	// Social OAuth
	app.Get("/auth/:provider", gothfiber.BeginAuthHandler)
	app.Get("/auth/:provider/callback", h.ctrl.Auth.HandleOAuthCallback)

	// Stripe signs its webhooks; the controller verifies the signature.
	app.Post("/webhook/stripe", h.ctrl.Billing.HandleStripeWebhook)

	app.Get("/ads/click/:id", h.ctrl.Ad.HandleClick)
	app.Get("/l/:code", h.ctrl.Listing.HandleShortLink)
	app.Post("/concierge/chat", h.ctrl.Concierge.HandleLegacyChat)
}
