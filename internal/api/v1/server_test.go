package apiv1

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hangarlinks/hangarlinks/app/models"
	"github.com/hangarlinks/hangarlinks/app/repository"
	"github.com/hangarlinks/hangarlinks/internal/pkg/cache"
)

const documentPath = "../../../public/docs/v1/openapi.yml"

type fakeListings struct {
	repository.ListingRepository
	listings map[uint]*models.Listing
	filter   repository.ListingFilter
	prices   []float64
}

func (f *fakeListings) GetByID(id uint) (*models.Listing, error) {
	if l, ok := f.listings[id]; ok {
		return l, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeListings) Search(filter repository.ListingFilter, page, perPage int) ([]models.Listing, int64, error) {
	f.filter = filter
	var out []models.Listing
	for _, l := range f.listings {
		out = append(out, *l)
	}
	return out, int64(len(out)), nil
}

func (f *fakeListings) ActivePricesAt(icao string, excludeID uint) ([]float64, error) {
	return f.prices, nil
}

func setupAPI(t *testing.T, listings *fakeListings) *fiber.App {
	t.Helper()
	// Unreachable cache: price intel falls through to the repository.
	cache.SetClient(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1}))

	doc, err := LoadDocument(documentPath)
	require.NoError(t, err)
	validator, err := RequestValidator(doc)
	require.NoError(t, err)

	s := &APIServer{listings: listings, now: func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) }}
	app := fiber.New()
	RegisterHandlers(app.Group(BasePath), s, validator, func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: "unauthorized"})
	})
	return app
}

func decode(t *testing.T, app *fiber.App, target string, v interface{}) int {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, target, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestGetPing(t *testing.T) {
	app := setupAPI(t, &fakeListings{})
	var pong Pong
	assert.Equal(t, fiber.StatusOK, decode(t, app, "/api/v1/ping", &pong))
	assert.Equal(t, "pong", pong.Ping)
}

func TestRequestValidation(t *testing.T) {
	app := setupAPI(t, &fakeListings{})

	cases := []struct {
		target string
		status int
	}{
		{"/api/v1/listings?airport=CYTZ&covered=yes", fiber.StatusOK},
		{"/api/v1/listings?airport=TORONTO", fiber.StatusBadRequest},
		{"/api/v1/listings?covered=maybe", fiber.StatusBadRequest},
		{"/api/v1/listings?radius=9000&airport=CYTZ", fiber.StatusBadRequest},
		{"/api/v1/listings?min_price=-5", fiber.StatusBadRequest},
		{"/api/v1/listings/0", fiber.StatusBadRequest},
		{"/api/v1/listings/abc", fiber.StatusBadRequest},
		{"/api/v1/airports/C-TZ", fiber.StatusBadRequest},
	}
	for _, tc := range cases {
		var body ErrorResponse
		status := decode(t, app, tc.target, &body)
		if status != tc.status {
			t.Fatalf("%s: expected %d, got %d (%+v)", tc.target, tc.status, status, body)
		}
	}
}

func TestListListings_RadiusUsesAirportCoordinates(t *testing.T) {
	listings := &fakeListings{listings: map[uint]*models.Listing{
		1: {ID: 1, AirportICAO: "CYTZ", PriceMonth: 500, Status: models.LISTING_ACTIVE, Owner: models.User{ID: 9, Username: "pilot", Email: "pilot@example.com"}},
	}}
	app := setupAPI(t, listings)

	var page ListingPage
	require.Equal(t, fiber.StatusOK, decode(t, app, "/api/v1/listings?airport=cytz&radius=50", &page))
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "pilot", page.Data[0].Owner.Username)
	assert.Equal(t, "CYTZ", listings.filter.Airport)
	assert.Equal(t, 50, listings.filter.RadiusMi)
	require.NotNil(t, listings.filter.Lat)
}

func TestGetListing(t *testing.T) {
	listings := &fakeListings{listings: map[uint]*models.Listing{
		1: {ID: 1, AirportICAO: "CYTZ", Status: models.LISTING_ACTIVE},
		2: {ID: 2, AirportICAO: "CYTZ", Status: models.LISTING_RENTED},
	}}
	app := setupAPI(t, listings)

	var l ListingResource
	assert.Equal(t, fiber.StatusOK, decode(t, app, "/api/v1/listings/1", &l))
	assert.Equal(t, "CYTZ", l.AirportICAO)

	var e ErrorResponse
	assert.Equal(t, fiber.StatusNotFound, decode(t, app, "/api/v1/listings/2", &e))
	assert.Equal(t, "not_found", e.Error)
	assert.Equal(t, fiber.StatusNotFound, decode(t, app, "/api/v1/listings/3", &e))
}

func TestGetAirport(t *testing.T) {
	app := setupAPI(t, &fakeListings{prices: []float64{400, 600}})

	var a AirportResource
	require.Equal(t, fiber.StatusOK, decode(t, app, "/api/v1/airports/cytz", &a))
	assert.Equal(t, "CYTZ", a.ICAO)
	assert.True(t, a.Known)
	require.NotNil(t, a.PriceIntel)
	assert.Equal(t, 500.0, a.PriceIntel.Avg)
}

func TestGetMe_RequiresAPIKey(t *testing.T) {
	app := setupAPI(t, &fakeListings{})
	assert.Equal(t, fiber.StatusUnauthorized, decode(t, app, "/api/v1/me", nil))
}
