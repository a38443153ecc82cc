package apiv1

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/hangarlinks/hangarlinks/app/models"
	"github.com/hangarlinks/hangarlinks/internal/pkg/imageprocessor"
	"github.com/hangarlinks/hangarlinks/internal/pkg/marketplace"
)

type Pong struct {
	Ping string `json:"ping"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type OwnerResource struct {
	ID              uint    `json:"id"`
	Username        string  `json:"username"`
	ReputationScore float64 `json:"reputation_score"`
	IsCertified     bool    `json:"is_certified"`
}

type ListingResource struct {
	ID                uint          `json:"id"`
	AirportICAO       string        `json:"airport_icao"`
	SizeSqft          int           `json:"size_sqft"`
	Covered           bool          `json:"covered"`
	PriceMonth        float64       `json:"price_month"`
	Description       string        `json:"description"`
	Status            string        `json:"status"`
	Featured          bool          `json:"featured"`
	PremiumListing    bool          `json:"premium_listing"`
	HealthScore       int           `json:"health_score"`
	Likes             int           `json:"likes"`
	Lat               *float64      `json:"lat,omitempty"`
	Lon               *float64      `json:"lon,omitempty"`
	AvailabilityStart *time.Time    `json:"availability_start,omitempty"`
	AvailabilityEnd   *time.Time    `json:"availability_end,omitempty"`
	PhotoURLs         []string      `json:"photo_urls"`
	Owner             OwnerResource `json:"owner"`
	CreatedAt         time.Time     `json:"created_at"`
}

func newListingResource(c *fiber.Ctx, l *models.Listing, now time.Time) ListingResource {
	r := ListingResource{
		ID:                l.ID,
		AirportICAO:       l.AirportICAO,
		SizeSqft:          l.SizeSqft,
		Covered:           l.Covered,
		PriceMonth:        l.PriceMonth,
		Description:       l.Description,
		Status:            l.Status,
		Featured:          l.IsFeaturedAt(now),
		PremiumListing:    l.IsPremiumListing,
		HealthScore:       l.HealthScore,
		Likes:             l.Likes,
		Lat:               l.Lat,
		Lon:               l.Lon,
		AvailabilityStart: l.AvailabilityStart,
		AvailabilityEnd:   l.AvailabilityEnd,
		PhotoURLs:         make([]string, 0, len(l.Photos)),
		Owner: OwnerResource{
			ID:              l.Owner.ID,
			Username:        l.Owner.Username,
			ReputationScore: l.Owner.ReputationScore,
			IsCertified:     l.Owner.IsCertified,
		},
		CreatedAt: l.CreatedAt,
	}
	for i := range l.Photos {
		if l.Photos[i].Kind != models.PHOTO_KIND_PHOTO {
			continue
		}
		r.PhotoURLs = append(r.PhotoURLs, imageprocessor.PhotoURL(c, &l.Photos[i], "medium"))
	}
	return r
}

type ListingPage struct {
	Data    []ListingResource `json:"data"`
	Page    int               `json:"page"`
	PerPage int               `json:"per_page"`
	Total   int64             `json:"total"`
}

type AirportResource struct {
	ICAO       string                  `json:"icao"`
	Known      bool                    `json:"known"`
	Lat        float64                 `json:"lat"`
	Lon        float64                 `json:"lon"`
	PriceIntel *marketplace.PriceIntel `json:"price_intel"`
}

type MeResource struct {
	ID                 uint       `json:"id"`
	Username           string     `json:"username"`
	Email              string     `json:"email"`
	Role               string     `json:"role"`
	Plan               string     `json:"plan"`
	SubscriptionExpiry *time.Time `json:"subscription_expires,omitempty"`
	Points             int        `json:"points"`
	ReputationScore    float64    `json:"reputation_score"`
	IsCertified        bool       `json:"is_certified"`
}
