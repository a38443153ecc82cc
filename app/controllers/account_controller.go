package controllers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/errgroup"

	"github.com/hangarlinks/hangarlinks/app/models"
	"github.com/hangarlinks/hangarlinks/app/repository"
	"github.com/hangarlinks/hangarlinks/internal/pkg/constants"
	"github.com/hangarlinks/hangarlinks/internal/pkg/insights"
	"github.com/hangarlinks/hangarlinks/internal/pkg/marketplace"
	"github.com/hangarlinks/hangarlinks/internal/pkg/usercontext"
	"github.com/hangarlinks/hangarlinks/internal/pkg/viewmodel"
)

// CertifiedPartnerPoints are awarded once when a user certifies.
const CertifiedPartnerPoints = 500

type AccountController struct {
	repos *repository.Repositories
	now   func() time.Time
}

func NewAccountController(repos *repository.Repositories) *AccountController {
	return &AccountController{repos: repos, now: time.Now}
}

type alertForm struct {
	AlertAirport  string `form:"alert_airport" validate:"omitempty,len=4,alphanum"`
	AlertMaxPrice string `form:"alert_max_price"`
	AlertMinSize  string `form:"alert_min_size"`
}

func (ac *AccountController) HandleProfile(c *fiber.Ctx) error {
	uid := usercontext.GetUserID(c)
	settings, err := ac.repos.UserSettings.GetOrCreate(uid)
	if err != nil {
		return handleRepoError(c, "Profile", err)
	}

	if c.Method() == fiber.MethodPost {
		var form alertForm
		if err := c.BodyParser(&form); err != nil {
			return redirectError(c, "Please check your alert preferences.", constants.ProfileRoute)
		}
		form.AlertAirport = strings.ToUpper(strings.TrimSpace(form.AlertAirport))
		if err := validate.Struct(form); err != nil {
			return redirectError(c, "Alert airport must be a 4 letter ICAO code.", constants.ProfileRoute)
		}
		settings.AlertEnabled = checkbox(c, "alert_enabled")
		settings.AlertAirport = form.AlertAirport
		settings.AlertMaxPrice = optionalFloat(form.AlertMaxPrice)
		settings.AlertMinSize = optionalInt(form.AlertMinSize)
		settings.AlertCoveredOnly = checkbox(c, "alert_covered_only")
		if err := ac.repos.UserSettings.Save(settings); err != nil {
			return handleRepoError(c, "Profile", err)
		}
		return redirectSuccess(c, "Alert preferences saved! You'll be notified when matching listings are posted.", constants.ProfileRoute)
	}
	return ac.renderProfile(c, settings, "")
}

func (ac *AccountController) renderProfile(c *fiber.Ctx, settings *models.UserSettings, newKey string) error {
	user, err := ac.repos.User.GetByID(usercontext.GetUserID(c))
	if err != nil {
		return handleRepoError(c, "Profile", err)
	}
	data := fiber.Map{
		"User":      user,
		"IsPremium": user.HasPremium(),
		"Settings":  settings,
		"NewAPIKey": newKey,
	}
	if settings.AlertMaxPrice != nil {
		data["AlertMaxPrice"] = strconv.FormatFloat(*settings.AlertMaxPrice, 'f', -1, 64)
	}
	if settings.AlertMinSize != nil {
		data["AlertMinSize"] = strconv.Itoa(*settings.AlertMinSize)
	}
	return render(c, "account/profile", user.Username, data)
}

// HandleIssueAPIKey creates or rotates the key and shows it once.
func (ac *AccountController) HandleIssueAPIKey(c *fiber.Ctx) error {
	settings, err := ac.repos.UserSettings.GetOrCreate(usercontext.GetUserID(c))
	if err != nil {
		return handleRepoError(c, "Profile", err)
	}
	raw, err := settings.IssueAPIKey(time.Now())
	if err != nil {
		log.Errorf("[Profile] generate api key: %v", err)
		return redirectError(c, "Could not create an API key.", constants.ProfileRoute)
	}
	if err := ac.repos.UserSettings.Save(settings); err != nil {
		return handleRepoError(c, "Profile", err)
	}
	return ac.renderProfile(c, settings, raw)
}

func (ac *AccountController) HandleRevokeAPIKey(c *fiber.Ctx) error {
	settings, err := ac.repos.UserSettings.GetOrCreate(usercontext.GetUserID(c))
	if err != nil {
		return handleRepoError(c, "Profile", err)
	}
	if !settings.HasActiveAPIKey() {
		return redirectInfo(c, "You have no active API key.", constants.ProfileRoute)
	}
	settings.RevokeAPIKey(time.Now())
	if err := ac.repos.UserSettings.Save(settings); err != nil {
		return handleRepoError(c, "Profile", err)
	}
	return redirectSuccess(c, "API key revoked.", constants.ProfileRoute)
}

func (ac *AccountController) HandleOwnerDashboard(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	if !uc.IsOwner() {
		return redirectError(c, "Access restricted to hangar owners.", "/")
	}

	var (
		listings  []models.Listing
		confirmed []models.Booking
	)
	g := new(errgroup.Group)
	g.Go(func() error {
		var err error
		listings, err = ac.repos.Listing.AllByOwner(uc.UserID)
		return err
	})
	g.Go(func() error {
		var err error
		confirmed, err = ac.repos.Booking.ConfirmedForOwner(uc.UserID)
		return err
	})
	if err := g.Wait(); err != nil {
		return handleRepoError(c, "Dashboard", err)
	}

	return render(c, "account/owner_dashboard", "Owner dashboard", fiber.Map{
		"Stats":    marketplace.ComputeOwnerStats(listings, confirmed),
		"Listings": viewmodel.NewListingCards(c, listings, ac.now()),
	})
}

func (ac *AccountController) HandleRewards(c *fiber.Ctx) error {
	user, err := ac.repos.User.GetByID(usercontext.GetUserID(c))
	if err != nil {
		return handleRepoError(c, "Rewards", err)
	}
	return render(c, "account/rewards", "Rewards", fiber.Map{"User": user})
}

// HandleReferrals shows the referral link, creating the code on first visit.
func (ac *AccountController) HandleReferrals(c *fiber.Ctx) error {
	user, err := ac.repos.User.GetByID(usercontext.GetUserID(c))
	if err != nil {
		return handleRepoError(c, "Referrals", err)
	}
	created, err := user.EnsureReferralCode()
	if err != nil {
		log.Errorf("[Referrals] generate code for user %d: %v", user.ID, err)
		return renderError(c, fiber.StatusInternalServerError, "Could not create your referral code.")
	}
	if created {
		if err := ac.repos.User.UpdateFields(user.ID, map[string]interface{}{"referral_code": *user.ReferralCode}); err != nil {
			return handleRepoError(c, "Referrals", err)
		}
	}
	return render(c, "account/referrals", "Refer a friend", fiber.Map{
		"Code":        *user.ReferralCode,
		"ReferralURL": absoluteURL("/register?ref=" + *user.ReferralCode),
	})
}

func (ac *AccountController) HandleCertifyMe(c *fiber.Ctx) error {
	user, err := ac.repos.User.GetByID(usercontext.GetUserID(c))
	if err != nil {
		return handleRepoError(c, "Certify", err)
	}
	if user.IsCertified {
		return redirectInfo(c, "You are already a Certified HangarLinks Partner.", constants.ProfileRoute)
	}
	if err := ac.repos.User.UpdateFields(user.ID, map[string]interface{}{
		"is_certified":     true,
		"reputation_score": 5.0,
	}); err != nil {
		return handleRepoError(c, "Certify", err)
	}
	if err := ac.repos.User.AddPoints(user.ID, CertifiedPartnerPoints); err != nil {
		return handleRepoError(c, "Certify", err)
	}
	return redirectSuccess(c, "You are now a Certified HangarLinks Partner! (+500 pts)", constants.ProfileRoute)
}

// HandleInsightsDashboard shows owners their revenue and renters their spend.
func (ac *AccountController) HandleInsightsDashboard(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	summary := insights.Summary{MarketTrend: insights.MarketTrend, AreaAverage: insights.AreaAverage}
	if uc.IsOwner() {
		confirmed, err := ac.repos.Booking.ConfirmedForOwner(uc.UserID)
		if err != nil {
			return handleRepoError(c, "Insights", err)
		}
		for _, b := range confirmed {
			summary.TotalRevenue += b.OwnerEarnings()
		}
	} else {
		spent, err := ac.repos.Booking.SumForRenter(uc.UserID, models.BOOKING_CONFIRMED)
		if err != nil {
			return handleRepoError(c, "Insights", err)
		}
		summary.TotalSpent = spent
	}
	return render(c, "account/insights_dashboard", "Insights", fiber.Map{
		"Summary":  summary,
		"IsOwner":  uc.IsOwner(),
		"Forecast": insights.NewForecast(nil),
	})
}
