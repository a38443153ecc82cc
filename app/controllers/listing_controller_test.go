package controllers

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hangarlinks/hangarlinks/app/models"
	"github.com/hangarlinks/hangarlinks/app/repository"
	"github.com/hangarlinks/hangarlinks/internal/pkg/constants"
	"github.com/hangarlinks/hangarlinks/internal/pkg/jobqueue"
	"github.com/hangarlinks/hangarlinks/internal/pkg/usercontext"
)

func (f *fakeListings) Search(filter repository.ListingFilter, page, perPage int) ([]models.Listing, int64, error) {
	f.searches = append(f.searches, filter)
	var out []models.Listing
	for _, l := range f.listings {
		if l.IsActive() {
			out = append(out, *l)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeListings) CountActiveByOwner(ownerID uint) (int64, error) {
	var n int64
	for _, l := range f.listings {
		if l.OwnerID == ownerID && l.IsActive() {
			n++
		}
	}
	return n, nil
}

func (f *fakeListings) Create(l *models.Listing) error {
	l.ID = uint(len(f.listings) + 100)
	f.listings[l.ID] = l
	return nil
}

func (f *fakeListings) Update(l *models.Listing) error {
	copied := *l
	f.listings[l.ID] = &copied
	f.saved = append(f.saved, l.ID)
	return nil
}

func (f *fakeListings) AddPhoto(photo *models.ListingPhoto) error {
	l := f.listings[photo.ListingID]
	photo.ID = uint(len(l.Photos) + 1)
	l.Photos = append(l.Photos, *photo)
	return nil
}

type fakeUsers struct {
	repository.UserRepository
	users   map[uint]*models.User
	updates map[uint]map[string]interface{}
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{users: map[uint]*models.User{}, updates: map[uint]map[string]interface{}{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetByID(id uint) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUsers) GetByEmail(email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUsers) EmailExists(email string) (bool, error) {
	_, err := f.GetByEmail(email)
	return err == nil, nil
}

func (f *fakeUsers) UsernameExists(username string) (bool, error) {
	for _, u := range f.users {
		if strings.EqualFold(u.Username, username) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsers) Create(u *models.User) error {
	u.ID = uint(len(f.users) + 1)
	f.users[u.ID] = u
	return nil
}

func (f *fakeUsers) UpdateFields(id uint, fields map[string]interface{}) error {
	if f.updates[id] == nil {
		f.updates[id] = map[string]interface{}{}
	}
	for k, v := range fields {
		f.updates[id][k] = v
	}
	return nil
}

type fakeJobs struct {
	photos []uint
	alerts []uint
	notes  []string
}

func (j *fakeJobs) EnqueueListingPhoto(photo *models.ListingPhoto, uploadDir string, backup bool) (*jobqueue.Job, error) {
	j.photos = append(j.photos, photo.ID)
	return &jobqueue.Job{ID: fmt.Sprint(photo.ID)}, nil
}

func (j *fakeJobs) EnqueueListingAlerts(listingID uint) (*jobqueue.Job, error) {
	j.alerts = append(j.alerts, listingID)
	return &jobqueue.Job{}, nil
}

func (j *fakeJobs) NotifyAdmin(subject, text string) {
	j.notes = append(j.notes, subject)
}

type fakeAdSlots struct {
	repository.AdRepository
}

func (fakeAdSlots) RandomActive(placement string, limit int) ([]models.Ad, error) {
	return nil, nil
}

// flashMessage reads the message a redirect carries in the flash cookie.
func flashMessage(resp *http.Response) string {
	for _, ck := range resp.Cookies() {
		if ck.Name != "fiber-app-flash" {
			continue
		}
		raw, err := url.QueryUnescape(ck.Value)
		if err != nil {
			return ""
		}
		for _, part := range strings.Split(raw, "\x00") {
			if msg, ok := strings.CutPrefix(part, "message:"); ok {
				return msg
			}
		}
	}
	return ""
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", fiber.MIMEApplicationForm)
	return req
}

func renterAt(searches int, day time.Time, tier string) *models.User {
	return &models.User{
		ID: 5, Username: "renter", Email: "renter@test", Role: models.ROLE_RENTER,
		SubscriptionTier: tier, SearchCountToday: searches, SearchResetDate: &day,
	}
}

func TestSearch_DailyAllowance(t *testing.T) {
	now := time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC)
	today := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name        string
		user        *models.User
		sessionPlan string
		limited     bool
		count       int
	}{
		{"first search today", renterAt(0, today.AddDate(0, 0, -1), models.TIER_FREE), models.TIER_FREE, false, 1},
		{"last free search", renterAt(4, today, models.TIER_FREE), models.TIER_FREE, false, 5},
		{"allowance used up", renterAt(5, today, models.TIER_FREE), models.TIER_FREE, true, 5},
		{"downgraded but session says premium", renterAt(5, today, models.TIER_FREE), models.TIER_PREMIUM, true, 5},
		{"premium renter", renterAt(5, today, models.TIER_PREMIUM), models.TIER_PREMIUM, false, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := newFakeUsers(tt.user)
			listings := &fakeListings{listings: map[uint]*models.Listing{
				1: {ID: 1, AirportICAO: "CYHM", PriceMonth: 650, Status: models.LISTING_ACTIVE},
			}}
			lc := NewListingController(&repository.Repositories{User: users, Listing: listings, Ad: fakeAdSlots{}}, &fakeJobs{}, t.TempDir(), false)
			lc.now = func() time.Time { return now }

			app := newTestApp(t, usercontext.UserContext{IsLoggedIn: true, UserID: 5, Role: models.ROLE_RENTER, Plan: tt.sessionPlan})
			app.Get("/listings", lc.HandleSearch)
			resp, body := doRequest(t, app, httptest.NewRequest(fiber.MethodGet, "/listings?airport=cyhm", nil))
			require.Equal(t, fiber.StatusOK, resp.StatusCode)

			if tt.limited {
				assert.Empty(t, listings.searches, "limited renters must not get results")
				assert.Contains(t, body, "used your 5 free searches")
				assert.NotContains(t, body, "hangars found")
			} else {
				assert.Len(t, listings.searches, 1)
				assert.Contains(t, body, "1 hangars found")
			}
			if fields, ok := users.updates[5]; ok {
				assert.Equal(t, tt.count, fields["search_count_today"])
			} else if tt.count != tt.user.SearchCountToday {
				t.Fatalf("search count not saved, want %d", tt.count)
			}
		})
	}
}

func TestSearch_Filters(t *testing.T) {
	listings := &fakeListings{listings: map[uint]*models.Listing{}}
	lc := NewListingController(&repository.Repositories{Listing: listings, Ad: fakeAdSlots{}}, &fakeJobs{}, t.TempDir(), false)
	app := newTestApp(t, usercontext.UserContext{})
	app.Get("/listings", lc.HandleSearch)

	resp, body := doRequest(t, app, httptest.NewRequest(fiber.MethodGet, "/listings?airport=cyhm&radius=0&covered=yes&min_price=500&max_price=abc", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "No hangars match these filters.")
	require.Len(t, listings.searches, 1)
	f := listings.searches[0]
	assert.Equal(t, "CYHM", f.Airport)
	assert.Equal(t, "yes", f.Covered)
	require.NotNil(t, f.MinPrice)
	assert.Equal(t, 500.0, *f.MinPrice)
	assert.Nil(t, f.MaxPrice)
	assert.Zero(t, f.RadiusMi)
	assert.Nil(t, f.Lat)

	// a known airport widens to a radius, an unknown one stays an exact match
	doRequest(t, app, httptest.NewRequest(fiber.MethodGet, "/listings?airport=CYHM&radius=50", nil))
	f = listings.searches[1]
	assert.Equal(t, 50, f.RadiusMi)
	require.NotNil(t, f.Lat)
	assert.InDelta(t, 43.1736, *f.Lat, 1e-4)

	doRequest(t, app, httptest.NewRequest(fiber.MethodGet, "/listings?airport=ZZZZ", nil))
	f = listings.searches[2]
	assert.Zero(t, f.RadiusMi)
	assert.Nil(t, f.Lat)
}

func listingPost(t *testing.T, fields map[string]string, photos int) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	for i := 0; i < photos; i++ {
		field := "photos"
		if i%2 == 1 {
			field = "health_photos"
		}
		w, err := mw.CreateFormFile(field, fmt.Sprintf("hangar-%d.png", i))
		require.NoError(t, err)
		_, err = w.Write(png)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(fiber.MethodPost, "/post-listing", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestPostListing(t *testing.T) {
	owner := &models.User{ID: 3, Username: "owner", Role: models.ROLE_OWNER, SubscriptionTier: models.TIER_FREE, ReputationScore: 4.8}
	listings := &fakeListings{listings: map[uint]*models.Listing{}}
	jobs := &fakeJobs{}
	lc := NewListingController(&repository.Repositories{User: newFakeUsers(owner), Listing: listings}, jobs, t.TempDir(), false)
	app := newTestApp(t, usercontext.UserContext{IsLoggedIn: true, UserID: 3, Role: models.ROLE_OWNER})
	app.Post("/post-listing", lc.HandlePostListing)

	req := listingPost(t, map[string]string{
		"airport_icao":       "cyhm",
		"size_sqft":          "1800",
		"price_month":        "900",
		"covered":            "on",
		"checklist_verified": "on",
	}, 12)
	resp, _ := doRequest(t, app, req)
	require.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "Listing created successfully!", flashMessage(resp))

	require.Len(t, listings.listings, 1)
	var created *models.Listing
	for _, l := range listings.listings {
		created = l
	}
	assert.Equal(t, fmt.Sprintf("/listing/%d", created.ID), resp.Header.Get("Location"))
	assert.Equal(t, "CYHM", created.AirportICAO)
	assert.Equal(t, models.LISTING_ACTIVE, created.Status)
	// 3+ photos, checklist and reputation; condition not verified
	assert.Equal(t, 80, created.HealthScore)
	assert.Len(t, created.Photos, 10)
	assert.Len(t, jobs.photos, 10)
	assert.Equal(t, []uint{created.ID}, jobs.alerts)

	// the free owner now has one Active listing
	resp, _ = doRequest(t, app, listingPost(t, map[string]string{"airport_icao": "CYTZ", "price_month": "500"}, 0))
	require.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, constants.PricingRoute, resp.Header.Get("Location"))
	assert.Equal(t, listingLimitMessage, flashMessage(resp))
	assert.Len(t, listings.listings, 1)
}

func TestPostListing_RejectsNonImages(t *testing.T) {
	owner := &models.User{ID: 3, Role: models.ROLE_OWNER}
	listings := &fakeListings{listings: map[uint]*models.Listing{}}
	lc := NewListingController(&repository.Repositories{User: newFakeUsers(owner), Listing: listings}, &fakeJobs{}, t.TempDir(), false)
	app := newTestApp(t, usercontext.UserContext{IsLoggedIn: true, UserID: 3, Role: models.ROLE_OWNER})
	app.Post("/post-listing", lc.HandlePostListing)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("airport_icao", "CYHM"))
	require.NoError(t, mw.WriteField("price_month", "900"))
	w, err := mw.CreateFormFile("photos", "notes.txt")
	require.NoError(t, err)
	_, _ = w.Write([]byte("just text"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(fiber.MethodPost, "/post-listing", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, _ := doRequest(t, app, req)
	require.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/post-listing", resp.Header.Get("Location"))
	assert.Empty(t, listings.listings)
}

func TestEditListing(t *testing.T) {
	editForm := url.Values{"airport_icao": {"CYHM"}, "price_month": {"700"}, "size_sqft": {"1200"}, "status": {models.LISTING_ACTIVE}}
	tests := []struct {
		name     string
		user     uint
		tier     string
		id       uint
		location string
		message  string
		saved    bool
	}{
		{"not the owner", 9, models.TIER_FREE, 2, "/listing/2", "You can only edit your own listings", false},
		{"free owner reactivating over the limit", 3, models.TIER_FREE, 2, constants.PricingRoute, listingLimitMessage, false},
		{"premium owner reactivating", 3, models.TIER_PREMIUM, 2, "/listing/2", "Listing updated successfully!", true},
		{"free owner editing the active one", 3, models.TIER_FREE, 1, "/listing/1", "Listing updated successfully!", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			listings := &fakeListings{listings: map[uint]*models.Listing{
				1: {ID: 1, OwnerID: 3, AirportICAO: "CYHM", PriceMonth: 600, Status: models.LISTING_ACTIVE},
				2: {ID: 2, OwnerID: 3, AirportICAO: "CYHM", PriceMonth: 650, Status: models.LISTING_INACTIVE},
			}}
			owner := &models.User{ID: 3, Role: models.ROLE_OWNER, SubscriptionTier: tt.tier, IsPremium: tt.tier == models.TIER_PREMIUM}
			lc := NewListingController(&repository.Repositories{User: newFakeUsers(owner), Listing: listings}, &fakeJobs{}, t.TempDir(), false)
			app := newTestApp(t, usercontext.UserContext{IsLoggedIn: true, UserID: tt.user, Role: models.ROLE_OWNER})
			app.Post("/listing/:id/edit", lc.HandleEdit)

			resp, _ := doRequest(t, app, postForm(fmt.Sprintf("/listing/%d/edit", tt.id), editForm))
			if resp.StatusCode != fiber.StatusSeeOther {
				t.Fatalf("status = %d, want 303", resp.StatusCode)
			}
			assert.Equal(t, tt.location, resp.Header.Get("Location"))
			assert.Equal(t, tt.message, flashMessage(resp))
			assert.Equal(t, tt.saved, len(listings.saved) == 1)
			if !tt.saved {
				assert.Equal(t, models.LISTING_INACTIVE, listings.listings[2].Status)
			}
		})
	}
}
