// Package apiv1 serves the public JSON API under /api/v1.
package apiv1

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/hangarlinks/hangarlinks/app/models"
	"github.com/hangarlinks/hangarlinks/app/repository"
	"github.com/hangarlinks/hangarlinks/internal/pkg/airports"
	"github.com/hangarlinks/hangarlinks/internal/pkg/constants"
	"github.com/hangarlinks/hangarlinks/internal/pkg/marketplace"
	"github.com/hangarlinks/hangarlinks/internal/pkg/usercontext"
)

type APIServer struct {
	listings repository.ListingRepository
	users    repository.UserRepository
	now      func() time.Time
}

func NewAPIServer(repos *repository.Repositories) *APIServer {
	return &APIServer{listings: repos.Listing, users: repos.User, now: time.Now}
}

// RegisterHandlers mounts the v1 routes. The validator runs before every handler.
func RegisterHandlers(router fiber.Router, s *APIServer, validator fiber.Handler, apiKeyAuth fiber.Handler) {
	if validator != nil {
		router.Use(validator)
	}
	router.Get("/ping", s.GetPing)
	router.Get("/listings", s.ListListings)
	router.Get("/listings/:id", s.GetListing)
	router.Get("/airports/:icao", s.GetAirport)
	router.Get("/me", apiKeyAuth, s.GetMe)
}

func apiError(c *fiber.Ctx, status int, code, msg string) error {
	return c.Status(status).JSON(ErrorResponse{Error: code, Message: msg})
}

func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.JSON(Pong{Ping: "pong"})
}

type listingQuery struct {
	Page     int      `query:"page"`
	Airport  string   `query:"airport"`
	Radius   int      `query:"radius"`
	Covered  string   `query:"covered"`
	MinPrice *float64 `query:"min_price"`
	MaxPrice *float64 `query:"max_price"`
}

// ListListings searches Active listings with the same filters as the web search.
func (s *APIServer) ListListings(c *fiber.Ctx) error {
	var q listingQuery
	if err := c.QueryParser(&q); err != nil {
		return apiError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}
	if q.Page < 1 {
		q.Page = 1
	}
	filter := repository.ListingFilter{
		Airport:  strings.ToUpper(strings.TrimSpace(q.Airport)),
		Covered:  q.Covered,
		MinPrice: q.MinPrice,
		MaxPrice: q.MaxPrice,
	}
	if filter.Airport != "" && q.Radius > 0 {
		if coords, ok := airports.Lookup(filter.Airport); ok {
			filter.RadiusMi = q.Radius
			filter.Lat, filter.Lon = &coords.Lat, &coords.Lon
		}
	}

	listings, total, err := s.listings.Search(filter, q.Page, constants.ListingsPerPage)
	if err != nil {
		log.Errorf("[API] listing search: %v", err)
		return apiError(c, fiber.StatusInternalServerError, "internal_server_error", "")
	}
	now := s.now()
	out := ListingPage{
		Data:    make([]ListingResource, 0, len(listings)),
		Page:    q.Page,
		PerPage: constants.ListingsPerPage,
		Total:   total,
	}
	for i := range listings {
		out.Data = append(out.Data, newListingResource(c, &listings[i], now))
	}
	return c.JSON(out)
}

func (s *APIServer) GetListing(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return apiError(c, fiber.StatusBadRequest, "bad_request", "id must be a positive integer")
	}
	listing, err := s.listings.GetByID(uint(id))
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && listing.Status != models.LISTING_ACTIVE) {
		return apiError(c, fiber.StatusNotFound, "not_found", "listing not found")
	}
	if err != nil {
		log.Errorf("[API] listing %d: %v", id, err)
		return apiError(c, fiber.StatusInternalServerError, "internal_server_error", "")
	}
	return c.JSON(newListingResource(c, listing, s.now()))
}

// GetAirport returns coordinates and the price spread of Active listings.
func (s *APIServer) GetAirport(c *fiber.Ctx) error {
	icao := strings.ToUpper(c.Params("icao"))
	coords, known := airports.Lookup(icao)
	intel, err := marketplace.PriceIntelFor(s.listings, icao, 0)
	if err != nil {
		log.Errorf("[API] price intel %s: %v", icao, err)
		return apiError(c, fiber.StatusInternalServerError, "internal_server_error", "")
	}
	return c.JSON(AirportResource{ICAO: icao, Known: known, Lat: coords.Lat, Lon: coords.Lon, PriceIntel: intel})
}

func (s *APIServer) GetMe(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	user, err := s.users.GetByID(uc.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apiError(c, fiber.StatusUnauthorized, "unauthorized", "account no longer exists")
	}
	if err != nil {
		log.Errorf("[API] me %d: %v", uc.UserID, err)
		return apiError(c, fiber.StatusInternalServerError, "internal_server_error", "")
	}
	plan := models.TIER_FREE
	if user.HasPremium() {
		plan = models.TIER_PREMIUM
	}
	return c.JSON(MeResource{
		ID:                 user.ID,
		Username:           user.Username,
		Email:              user.Email,
		Role:               user.Role,
		Plan:               plan,
		SubscriptionExpiry: user.SubscriptionExpires,
		Points:             user.Points,
		ReputationScore:    user.ReputationScore,
		IsCertified:        user.IsCertified,
	})
}
