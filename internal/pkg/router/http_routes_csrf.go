package router

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/csrf"

	"github.com/hangarlinks/hangarlinks/internal/pkg/env"
	"github.com/hangarlinks/hangarlinks/internal/pkg/middleware"
)

const csrfHeader = "X-Csrf-Token"

var errMissingCSRFToken = errors.New("missing csrf token")

// csrfToken reads the token from the form field, falling back to the header htmx sends.
func csrfToken(c *fiber.Ctx) (string, error) {
	if token := c.FormValue("_csrf"); token != "" {
		return token, nil
	}
	if token := c.Get(csrfHeader); token != "" {
		return token, nil
	}
	return "", errMissingCSRFToken
}

func csrfConfig() csrf.Config {
	return csrf.Config{
		Extractor:      csrfToken,
		ContextKey:     "csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		Expiration:     1 * time.Hour,
		CookieSecure:   !env.IsDev(),
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/")
		},
	}
}

func (h HttpRouter) registerCSRFProtectedRoutes(app *fiber.App) {
	ctrl := h.ctrl
	group := app.Group("", cors.New(), csrf.New(csrfConfig()))

	// Pages
	group.Get("/", ctrl.Main.HandleHome)
	group.Get("/terms", ctrl.Main.HandleTerms)
	group.Get("/privacy", ctrl.Main.HandlePrivacy)

	// Auth
	group.Get("/login", ctrl.Auth.HandleLogin)
	group.Post("/login", ctrl.Auth.HandleLogin)
	group.Get("/register", ctrl.Auth.HandleRegister)
	group.Post("/register", ctrl.Auth.HandleRegister)
	group.Post("/logout", middleware.RequireAuth, ctrl.Auth.HandleLogout)

	// Listings
	group.Get("/listings", ctrl.Listing.HandleSearch)
	group.Get("/listings/price-intel", ctrl.Listing.HandlePriceIntelFragment)
	group.Get("/listing/:id", ctrl.Listing.HandleDetail)
	group.Get("/listing/:id/edit", middleware.RequireAuth, ctrl.Listing.HandleEdit)
	group.Post("/listing/:id/edit", middleware.RequireAuth, ctrl.Listing.HandleEdit)
	group.Get("/post-listing", middleware.RequireAuth, ctrl.Listing.HandlePostListing)
	group.Post("/post-listing", middleware.RequireAuth, ctrl.Listing.HandlePostListing)
	group.Get("/post-listing-confirm", middleware.RequireAuth, ctrl.Listing.HandleConfirm)
	group.Get("/feed", ctrl.Listing.HandleFeed)
	group.Post("/like/:id", ctrl.Listing.HandleLike)
	group.Get("/my-listings", middleware.RequireAuth, ctrl.Listing.HandleMyListings)
	group.Get("/matches", middleware.RequireAuth, ctrl.Listing.HandleMatches)

	// Messaging
	group.Get("/messages", middleware.RequireAuth, ctrl.Message.HandleInbox)
	group.Get("/message/:user_id", middleware.RequireAuth, ctrl.Message.HandleThread)
	group.Post("/message/:user_id", middleware.RequireAuth, ctrl.Message.HandleThread)
	group.Post("/book-viewing/:id", middleware.RequireAuth, ctrl.Message.HandleBookViewing)
	group.Post("/contact-guest/:id", ctrl.Message.HandleContactGuest)

	// Bookings
	group.Post("/book/:id", middleware.RequireAuth, ctrl.Booking.HandleBook)
	group.Get("/booking/success", middleware.RequireAuth, ctrl.Booking.HandleSuccess)
	group.Get("/agreement/:id", middleware.RequireAuth, ctrl.Booking.HandleAgreement)
	group.Post("/booking/complete/:id", middleware.RequireAuth, ctrl.Booking.HandleComplete)

	// Account
	group.Get("/profile", middleware.RequireAuth, ctrl.Account.HandleProfile)
	group.Post("/profile", middleware.RequireAuth, ctrl.Account.HandleProfile)
	group.Post("/profile/api-key", middleware.RequireAuth, ctrl.Account.HandleIssueAPIKey)
	group.Post("/profile/api-key/revoke", middleware.RequireAuth, ctrl.Account.HandleRevokeAPIKey)
	group.Get("/dashboard/owner", middleware.RequireAuth, ctrl.Account.HandleOwnerDashboard)
	group.Get("/dashboard/insights", middleware.RequireAuth, ctrl.Account.HandleInsightsDashboard)
	group.Get("/rewards", middleware.RequireAuth, ctrl.Account.HandleRewards)
	group.Get("/referrals", middleware.RequireAuth, ctrl.Account.HandleReferrals)
	group.Post("/admin/certify/me", middleware.RequireAuth, ctrl.Account.HandleCertifyMe)

	// Subscriptions
	group.Get("/pricing", ctrl.Billing.HandlePricing)
	group.Post("/create-checkout-session", middleware.RequireAuth, ctrl.Billing.HandleCreateCheckoutSession)
	group.Get("/subscription/success", middleware.RequireAuth, ctrl.Billing.HandleSubscriptionSuccess)
	group.Get("/subscription/cancel", middleware.RequireAuth, ctrl.Billing.HandleSubscriptionCancel)
	group.Get("/manage-subscription", middleware.RequireAuth, ctrl.Billing.HandleManageSubscription)
	group.Post("/cancel-subscription", middleware.RequireAuth, ctrl.Billing.HandleCancelSubscription)

	// One-off purchases
	group.Get("/pricing/sponsored", middleware.RequireAuth, ctrl.Billing.HandleSponsoredPricing)
	group.Post("/promote-listing/:tier", middleware.RequireAuth, ctrl.Billing.HandlePromoteListing)
	group.Get("/sponsored/success", middleware.RequireAuth, ctrl.Billing.HandleSponsoredSuccess)
	group.Get("/insights", middleware.RequireAuth, ctrl.Billing.HandleInsights)
	group.Post("/buy-insights/:type", middleware.RequireAuth, ctrl.Billing.HandleBuyInsights)
	group.Get("/insights/success", middleware.RequireAuth, ctrl.Billing.HandleInsightsSuccess)
	group.Get("/insights/market-reports", ctrl.Billing.HandleMarketReports)
	group.Post("/insights/buy-report/:id", ctrl.Billing.HandleBuyReport)
	group.Get("/white-label", ctrl.Billing.HandleWhiteLabel)
	group.Post("/white-label/submit", ctrl.Billing.HandleWhiteLabelSubmit)
	group.Get("/white-label/success", ctrl.Billing.HandleWhiteLabelSuccess)

	h.registerAdminRoutes(group)
}

func (h HttpRouter) registerAdminRoutes(group fiber.Router) {
	ctrl := h.ctrl
	group.Get("/admin/listings", middleware.RequireAdmin, ctrl.Admin.HandleListings)
	group.Post("/admin/toggle-featured/:id", middleware.RequireAdmin, ctrl.Admin.HandleToggleFeatured)
	group.Get("/admin/queue", middleware.RequireAdmin, ctrl.Admin.HandleQueue)
	group.Get("/admin/queue/data", middleware.RequireAdmin, ctrl.Admin.HandleQueueData)
	group.Post("/admin/queue/purge-cache", middleware.RequireAdmin, ctrl.Admin.HandlePurgeCache)

	group.Get("/admin/ads", middleware.RequireAdmin, ctrl.Ad.HandleAdminAds)
	group.Post("/admin/ads", middleware.RequireAdmin, ctrl.Ad.HandleAdminAds)
	group.Post("/admin/ads/toggle/:id", middleware.RequireAdmin, ctrl.Ad.HandleToggle)
	group.Post("/admin/ads/delete/:id", middleware.RequireAdmin, ctrl.Ad.HandleDelete)
}
