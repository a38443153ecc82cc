package controllers

import (
	"github.com/hangarlinks/hangarlinks/app/repository"
	"github.com/hangarlinks/hangarlinks/internal/pkg/billing"
	"github.com/hangarlinks/hangarlinks/internal/pkg/concierge"
	"github.com/hangarlinks/hangarlinks/internal/pkg/hcaptcha"
)

// Deps are the services the HTTP controllers share.
type Deps struct {
	Repos     *repository.Repositories
	Jobs      Jobs
	Scheduler Scheduler
	Captcha   *hcaptcha.Verifier
	Billing   *billing.Service
	Purchases *billing.Purchases
	Webhooks  *billing.WebhookProcessor
	UploadDir string
	// BackupPhotos copies processed listing photos to S3.
	BackupPhotos bool
}

// Controllers bundles every page controller for the router.
type Controllers struct {
	Main      *MainController
	Auth      *AuthController
	Listing   *ListingController
	Message   *MessageController
	Booking   *BookingController
	Account   *AccountController
	Billing   *BillingController
	Concierge *ConciergeController
	Ad        *AdController
	Admin     *AdminController
}

func New(d Deps) *Controllers {
	return &Controllers{
		Main:      NewMainController(d.Repos),
		Auth:      NewAuthController(d.Repos, d.Captcha),
		Listing:   NewListingController(d.Repos, d.Jobs, d.UploadDir, d.BackupPhotos),
		Message:   NewMessageController(d.Repos),
		Booking:   NewBookingController(d.Repos, d.Billing.Stripe(), d.Purchases),
		Account:   NewAccountController(d.Repos),
		Billing:   NewBillingController(d.Repos, d.Billing, d.Purchases, d.Webhooks, d.Jobs),
		Concierge: NewConciergeController(concierge.New(d.Repos.Listing)),
		Ad:        NewAdController(d.Repos.Ad),
		Admin:     NewAdminController(d.Repos, d.Scheduler),
	}
}
