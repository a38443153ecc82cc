package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/hangarlinks/hangarlinks/app/repository"
	"github.com/hangarlinks/hangarlinks/internal/pkg/database"
	"github.com/hangarlinks/hangarlinks/internal/pkg/session"
	"github.com/hangarlinks/hangarlinks/internal/pkg/statistics"
	"github.com/hangarlinks/hangarlinks/internal/pkg/usercontext"
	"github.com/hangarlinks/hangarlinks/internal/pkg/viewmodel"
)

// SessionShowOnboarding is set at registration and popped by the home page.
const SessionShowOnboarding = "show_onboarding"

type MainController struct {
	repos *repository.Repositories
	stats func() statistics.StatisticsData
	ping  func() error
	now   func() time.Time
}

func NewMainController(repos *repository.Repositories) *MainController {
	return &MainController{
		repos: repos,
		stats: statistics.GetStatisticsData,
		ping:  pingDatabase,
		now:   time.Now,
	}
}

func pingDatabase() error {
	db := database.GetDB()
	if db == nil {
		return errors.New("database not initialized")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.QueryRow("SELECT 1").Err()
}

func (mc *MainController) HandleHome(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	data := fiber.Map{"Stats": mc.stats()}

	featured, _, err := mc.repos.Listing.Search(repository.ListingFilter{}, 1, 6)
	if err != nil {
		log.Errorf("[Home] featured listings: %v", err)
	}
	data["Featured"] = viewmodel.NewListingCards(c, featured, mc.now())

	if uc.IsLoggedIn {
		myListings, err := mc.repos.Listing.CountByOwner(uc.UserID)
		if err != nil {
			log.Errorf("[Home] listing count for user %d: %v", uc.UserID, err)
		}
		messages, err := mc.repos.Message.CountForUser(uc.UserID)
		if err != nil {
			log.Errorf("[Home] message count for user %d: %v", uc.UserID, err)
		}
		data["MyListings"] = myListings
		data["Messages"] = messages
		data["ShowOnboarding"] = session.PopSessionValue(c, SessionShowOnboarding) != ""
	}
	return render(c, "home", "Hangar space, found fast", data)
}

// HandleHealth reports database connectivity for load balancers.
func (mc *MainController) HandleHealth(c *fiber.Ctx) error {
	if err := mc.ping(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error", "database": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "ok", "database": "connected"})
}

func (mc *MainController) HandleTerms(c *fiber.Ctx) error {
	return render(c, "pages/terms", "Terms of Service", nil)
}

func (mc *MainController) HandlePrivacy(c *fiber.Ctx) error {
	return render(c, "pages/privacy", "Privacy Policy", nil)
}

// HandleDismissOnboarding drops the onboarding flag. It returns an empty body
// so the HTMX swap removes the panel.
func (mc *MainController) HandleDismissOnboarding(c *fiber.Ctx) error {
	session.PopSessionValue(c, SessionShowOnboarding)
	if c.Get("HX-Request") == "true" {
		return c.SendString("")
	}
	return c.JSON(fiber.Map{"status": "ok"})
}
