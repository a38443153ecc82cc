package controllers

import (
	"fmt"
	"mime/multipart"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/hangarlinks/hangarlinks/app/models"
	"github.com/hangarlinks/hangarlinks/app/repository"
	"github.com/hangarlinks/hangarlinks/internal/pkg/airports"
	"github.com/hangarlinks/hangarlinks/internal/pkg/constants"
	"github.com/hangarlinks/hangarlinks/internal/pkg/entitlements"
	"github.com/hangarlinks/hangarlinks/internal/pkg/marketplace"
	"github.com/hangarlinks/hangarlinks/internal/pkg/metrics"
	"github.com/hangarlinks/hangarlinks/internal/pkg/metrics/counter"
	"github.com/hangarlinks/hangarlinks/internal/pkg/shortener"
	"github.com/hangarlinks/hangarlinks/internal/pkg/upload"
	"github.com/hangarlinks/hangarlinks/internal/pkg/usercontext"
	"github.com/hangarlinks/hangarlinks/internal/pkg/viewmodel"
	"github.com/hangarlinks/hangarlinks/views/components"
)

const (
	listingLimitMessage = "Free accounts can have 1 active listing. Upgrade to Premium for unlimited listings!"
	sidebarAds          = 2
	detailAds           = 1
	feedAds             = 3
	matchesAtAirport    = 50
	matchesGeneral      = 100
)

type ListingController struct {
	repos     *repository.Repositories
	jobs      Jobs
	uploadDir string
	backup    bool
	now       func() time.Time
}

// NewListingController wires the listing pages. backup enables S3 copies of new photos.
func NewListingController(repos *repository.Repositories, jobs Jobs, uploadDir string, backup bool) *ListingController {
	return &ListingController{repos: repos, jobs: jobs, uploadDir: uploadDir, backup: backup, now: time.Now}
}

// searchForm echoes the filters back into the search form.
type searchForm struct {
	Airport  string
	Radius   int
	Covered  string
	MinPrice string
	MaxPrice string
}

func (lc *ListingController) HandleSearch(c *fiber.Ctx) error {
	limited := lc.consumeSearch(c)
	metrics.Search(limited)

	form := searchForm{
		Airport:  strings.ToUpper(strings.TrimSpace(c.Query("airport"))),
		Radius:   c.QueryInt("radius", marketplace.DefaultSearchRadiusMi),
		Covered:  c.Query("covered"),
		MinPrice: c.Query("min_price"),
		MaxPrice: c.Query("max_price"),
	}
	if form.Radius < 0 {
		form.Radius = 0
	}
	filter := repository.ListingFilter{
		Airport:  form.Airport,
		Covered:  form.Covered,
		MinPrice: optionalFloat(form.MinPrice),
		MaxPrice: optionalFloat(form.MaxPrice),
	}
	if form.Airport != "" && form.Radius > 0 {
		if coords, ok := airports.Lookup(form.Airport); ok {
			filter.RadiusMi = form.Radius
			filter.Lat, filter.Lon = &coords.Lat, &coords.Lon
		}
	}

	page := queryPage(c)
	var listings []models.Listing
	var total int64
	if !limited {
		var err error
		listings, total, err = lc.repos.Listing.Search(filter, page, constants.ListingsPerPage)
		if err != nil {
			return handleRepoError(c, "Listings", err)
		}
	}

	return render(c, "listings/index", "Find a hangar", fiber.Map{
		"SearchLimited": limited,
		"Filter":        form,
		"Listings":      viewmodel.NewListingCards(c, listings, lc.now()),
		"Pagination": viewmodel.Pagination{
			Page:    page,
			PerPage: constants.ListingsPerPage,
			Total:   total,
			Query:   queryWithoutPage(c),
		},
		"Ads": lc.ads(models.AD_PLACEMENT_SIDEBAR, sidebarAds),
	})
}

// consumeSearch counts the search against a free renter's daily allowance
// and reports whether the allowance is used up. The plan is read from the
// user row since the session may predate a downgrade.
func (lc *ListingController) consumeSearch(c *fiber.Ctx) bool {
	uc := usercontext.GetUserContext(c)
	if !uc.IsLoggedIn || uc.Role != models.ROLE_RENTER {
		return false
	}
	user, err := lc.repos.User.GetByID(uc.UserID)
	if err != nil {
		log.Warnf("[Listings] search allowance for user %d: %v", uc.UserID, err)
		return false
	}
	allowed, changed := entitlements.ConsumeSearch(user, lc.now())
	if changed {
		if err := lc.repos.User.UpdateFields(user.ID, map[string]interface{}{
			"search_count_today": user.SearchCountToday,
			"search_reset_date":  user.SearchResetDate,
		}); err != nil {
			log.Warnf("[Listings] save search count for user %d: %v", user.ID, err)
		}
	}
	return !allowed
}

func queryWithoutPage(c *fiber.Ctx) string {
	values := url.Values{}
	c.Context().QueryArgs().VisitAll(func(k, v []byte) {
		if string(k) != "page" {
			values.Add(string(k), string(v))
		}
	})
	return values.Encode()
}

// ads picks active ads for a placement and counts their impressions.
func (lc *ListingController) ads(placement string, limit int) []models.Ad {
	ads, err := lc.repos.Ad.RandomActive(placement, limit)
	if err != nil {
		log.Warnf("[Ads] load %s ads: %v", placement, err)
		return nil
	}
	ids := make([]uint, 0, len(ads))
	for _, a := range ads {
		ids = append(ids, a.ID)
	}
	if err := counter.AddAdImpressions(ids...); err != nil {
		log.Debugf("[Ads] impressions: %v", err)
	}
	return ads
}

func (lc *ListingController) HandleDetail(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return notFound(c)
	}
	listing, err := lc.repos.Listing.GetByID(id)
	if err != nil {
		return handleRepoError(c, "Listings", err)
	}
	if err := counter.AddListingView(listing.ID); err != nil {
		log.Debugf("[Listings] view counter: %v", err)
	}

	intel, err := marketplace.PriceIntelFor(lc.repos.Listing, listing.AirportICAO, listing.ID)
	if err != nil {
		log.Warnf("[Listings] price intel for %d: %v", listing.ID, err)
	}

	uc := usercontext.GetUserContext(c)
	detail := viewmodel.NewListingDetail(c, *listing, lc.now())
	return render(c, "listings/show", fmt.Sprintf("Hangar at %s", listing.AirportICAO), fiber.Map{
		"Detail":       detail,
		"PriceIntel":   intel,
		"Quote":        marketplace.QuoteBooking(listing.PriceMonth, false),
		"InsuranceFee": marketplace.QuoteBooking(listing.PriceMonth, true).Insurance(),
		"IsOwner":      uc.IsLoggedIn && uc.UserID == listing.OwnerID,
		"ShareURL":     absoluteURL("/l/" + shortener.EncodeID(listing.ID)),
		"Ads":          lc.ads(models.AD_PLACEMENT_LISTING, detailAds),
	})
}

// HandleShortLink resolves a share code to the listing page.
func (lc *ListingController) HandleShortLink(c *fiber.Ctx) error {
	id, ok := shortener.DecodeID(c.Params("code"))
	if !ok || id == 0 {
		return notFound(c)
	}
	return c.Redirect(fmt.Sprintf("/listing/%d", id), fiber.StatusMovedPermanently)
}

// HandlePriceIntelFragment renders the going-rate badge for the listing form.
func (lc *ListingController) HandlePriceIntelFragment(c *fiber.Ctx) error {
	icao := strings.ToUpper(strings.TrimSpace(c.Query("airport")))
	var intel *marketplace.PriceIntel
	if len(icao) == 4 {
		var err error
		if intel, err = marketplace.PriceIntelFor(lc.repos.Listing, icao, 0); err != nil {
			log.Warnf("[Listings] price intel for %s: %v", icao, err)
		}
	} else {
		icao = ""
	}
	c.Type("html")
	return components.PriceIntelBadge(icao, intel).Render(c.UserContext(), c.Response().BodyWriter())
}

// listingForm holds the text fields of the create and edit forms.
type listingForm struct {
	AirportICAO    string  `form:"airport_icao"`
	SizeSqft       int     `form:"size_sqft"`
	PriceMonth     float64 `form:"price_month"`
	Description    string  `form:"description"`
	VideoURL       string  `form:"video_url"`
	VirtualTourURL string  `form:"virtual_tour_url"`
	Status         string  `form:"status"`
}

func (lc *ListingController) HandlePostListing(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	user, err := lc.repos.User.GetByID(uc.UserID)
	if err != nil {
		return handleRepoError(c, "Listings", err)
	}
	active, err := lc.repos.Listing.CountActiveByOwner(user.ID)
	if err != nil {
		return handleRepoError(c, "Listings", err)
	}
	if !entitlements.CanCreateListing(user, active) {
		return redirectInfo(c, listingLimitMessage, constants.PricingRoute)
	}

	if c.Method() != fiber.MethodPost {
		airport := strings.ToUpper(strings.TrimSpace(c.Query("airport")))
		data := fiber.Map{"Airport": airport}
		if airport != "" {
			intel, err := marketplace.PriceIntelFor(lc.repos.Listing, airport, 0)
			if err != nil {
				log.Warnf("[Listings] price intel for %s: %v", airport, err)
			}
			if html, err := components.HTML(c.UserContext(), components.PriceIntelBadge(airport, intel)); err == nil {
				data["PriceIntelHTML"] = html
			}
		}
		return render(c, "listings/new", "List your hangar", data)
	}

	var form listingForm
	if err := c.BodyParser(&form); err != nil {
		return redirectError(c, "Please check the listing details.", "/post-listing")
	}

	listing := &models.Listing{
		AirportICAO:        strings.ToUpper(strings.TrimSpace(form.AirportICAO)),
		SizeSqft:           form.SizeSqft,
		Covered:            checkbox(c, "covered"),
		PriceMonth:         form.PriceMonth,
		Description:        strings.TrimSpace(form.Description),
		VideoURL:           strings.TrimSpace(form.VideoURL),
		VirtualTourURL:     strings.TrimSpace(form.VirtualTourURL),
		Status:             models.LISTING_ACTIVE,
		ChecklistCompleted: checkbox(c, "checklist_verified"),
		ConditionVerified:  checkbox(c, "condition_verified"),
		AvailabilityStart:  optionalDate(c.FormValue("availability_start")),
		AvailabilityEnd:    optionalDate(c.FormValue("availability_end")),
		IsPremiumListing:   user.HasPremium(),
		OwnerID:            user.ID,
	}
	if coords, ok := airports.Lookup(listing.AirportICAO); ok {
		listing.Lat, listing.Lon = &coords.Lat, &coords.Lon
	}
	if err := listing.Validate(); err != nil {
		return redirectError(c, validationMessage(err), "/post-listing")
	}

	files, err := lc.collectPhotos(c)
	if err != nil {
		return redirectError(c, err.Error(), "/post-listing")
	}
	listing.HealthScore = marketplace.HealthScore(len(files), listing.ChecklistCompleted, listing.ConditionVerified, user.ReputationScore)

	if err := lc.repos.Listing.Create(listing); err != nil {
		return handleRepoError(c, "Listings", err)
	}
	lc.storePhotos(c, listing.ID, files)

	marketplace.InvalidatePriceIntel(listing.AirportICAO)
	if _, err := lc.jobs.EnqueueListingAlerts(listing.ID); err != nil {
		log.Errorf("[Listings] enqueue alerts for listing %d: %v", listing.ID, err)
	}
	metrics.ListingCreated()
	log.Infof("[Listings] user %d created listing %d at %s", user.ID, listing.ID, listing.AirportICAO)

	return redirectSuccess(c, "Listing created successfully!", fmt.Sprintf("/listing/%d", listing.ID))
}

type photoUpload struct {
	header *multipart.FileHeader
	kind   string
}

// collectPhotos gathers gallery and health photos, keeping the first
// upload.MaxPhotos valid images.
func (lc *ListingController) collectPhotos(c *fiber.Ctx) ([]photoUpload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		// Plain urlencoded posts carry no files.
		return nil, nil
	}
	var out []photoUpload
	for _, field := range []struct {
		name string
		kind string
	}{
		{"photos", models.PHOTO_KIND_PHOTO},
		{"health_photos", models.PHOTO_KIND_HEALTH},
	} {
		for _, fh := range form.File[field.name] {
			if fh == nil || fh.Filename == "" {
				continue
			}
			if _, err := upload.ValidateFileHeader(fh); err != nil {
				return nil, fmt.Errorf("%s: %w", upload.SecureFilename(fh.Filename), err)
			}
			if len(out) < upload.MaxPhotos {
				out = append(out, photoUpload{header: fh, kind: field.kind})
			}
		}
	}
	return out, nil
}

// storePhotos saves the files and queues their processing. Failures are
// logged; the listing stays online without the photo.
func (lc *ListingController) storePhotos(c *fiber.Ctx, listingID uint, files []photoUpload) {
	for _, f := range files {
		name := upload.StoredFilename(f.header.Filename, lc.now())
		if err := c.SaveFile(f.header, filepath.Join(lc.uploadDir, name)); err != nil {
			log.Errorf("[Listings] save photo %s: %v", name, err)
			continue
		}
		photo := &models.ListingPhoto{
			ListingID: listingID,
			Kind:      f.kind,
			FileName:  name,
			FileSize:  f.header.Size,
		}
		if err := lc.repos.Listing.AddPhoto(photo); err != nil {
			log.Errorf("[Listings] record photo %s: %v", name, err)
			continue
		}
		if _, err := lc.jobs.EnqueueListingPhoto(photo, lc.uploadDir, lc.backup); err != nil {
			log.Errorf("[Listings] enqueue photo %d: %v", photo.ID, err)
		}
	}
}

func (lc *ListingController) HandleConfirm(c *fiber.Ctx) error {
	count, err := lc.repos.Listing.CountByOwner(usercontext.GetUserID(c))
	if err != nil {
		return handleRepoError(c, "Listings", err)
	}
	return render(c, "listings/confirm", "Listing posted", fiber.Map{"Count": count})
}

func (lc *ListingController) HandleFeed(c *fiber.Ctx) error {
	listings, err := lc.repos.Listing.Recent(constants.FeedSize)
	if err != nil {
		return handleRepoError(c, "Listings", err)
	}
	return render(c, "listings/feed", "Latest hangars", fiber.Map{
		"Listings": viewmodel.NewListingCards(c, listings, lc.now()),
		"Ads":      lc.ads(models.AD_PLACEMENT_FEED, feedAds),
	})
}

func (lc *ListingController) HandleLike(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	}
	likes, err := lc.repos.Listing.IncrementLikes(id)
	if err != nil {
		if isNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
		}
		log.Errorf("[Listings] like %d: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not save like"})
	}
	return c.JSON(fiber.Map{"likes": likes})
}

func (lc *ListingController) HandleMyListings(c *fiber.Ctx) error {
	uid := usercontext.GetUserID(c)
	page := queryPage(c)
	total, err := lc.repos.Listing.CountByOwner(uid)
	if err != nil {
		return handleRepoError(c, "Listings", err)
	}
	listings, err := lc.repos.Listing.ListByOwner(uid, (page-1)*constants.MyListingsPerPage, constants.MyListingsPerPage)
	if err != nil {
		return handleRepoError(c, "Listings", err)
	}
	return render(c, "listings/mine", "My listings", fiber.Map{
		"Listings":   viewmodel.NewListingCards(c, listings, lc.now()),
		"Pagination": viewmodel.Pagination{Page: page, PerPage: constants.MyListingsPerPage, Total: total},
	})
}

// HandleMatches scores listings at the renter's alert airport and the most
// prominent listings elsewhere.
func (lc *ListingController) HandleMatches(c *fiber.Ctx) error {
	uid := usercontext.GetUserID(c)
	settings, err := lc.repos.UserSettings.GetOrCreate(uid)
	if err != nil {
		return handleRepoError(c, "Matches", err)
	}

	var candidates []models.Listing
	if airport := settings.HomeAirport(); airport != "" {
		local, err := lc.repos.Listing.ActiveAtAirport(airport, matchesAtAirport)
		if err != nil {
			return handleRepoError(c, "Matches", err)
		}
		candidates = append(candidates, local...)
	}
	general, err := lc.repos.Listing.MatchCandidates(matchesGeneral)
	if err != nil {
		return handleRepoError(c, "Matches", err)
	}
	candidates = append(candidates, general...)

	now := lc.now()
	matches := marketplace.RankMatches(settings, candidates, constants.MatchesShown)
	cards := make([]viewmodel.ListingCard, 0, len(matches))
	for _, m := range matches {
		card := viewmodel.NewListingCard(c, m.Listing, now)
		card.Score = m.Score
		cards = append(cards, card)
	}
	return render(c, "listings/matches", "Your matches", fiber.Map{
		"HasAlerts": settings.AlertEnabled || settings.HomeAirport() != "",
		"Matches":   cards,
	})
}

func (lc *ListingController) HandleEdit(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return notFound(c)
	}
	listing, err := lc.repos.Listing.GetByID(id)
	if err != nil {
		return handleRepoError(c, "Listings", err)
	}
	detailURL := fmt.Sprintf("/listing/%d", listing.ID)
	if listing.OwnerID != usercontext.GetUserID(c) {
		return redirectError(c, "You can only edit your own listings", detailURL)
	}

	if c.Method() != fiber.MethodPost {
		return render(c, "listings/edit", "Edit listing", fiber.Map{
			"Listing":  listing,
			"Statuses": []string{models.LISTING_ACTIVE, models.LISTING_INACTIVE, models.LISTING_RENTED},
		})
	}

	var form listingForm
	if err := c.BodyParser(&form); err != nil {
		return redirectError(c, "Please check the listing details.", detailURL+"/edit")
	}

	oldAirport := listing.AirportICAO
	listing.AirportICAO = strings.ToUpper(strings.TrimSpace(form.AirportICAO))
	listing.SizeSqft = form.SizeSqft
	listing.Covered = checkbox(c, "covered")
	listing.PriceMonth = form.PriceMonth
	listing.Description = strings.TrimSpace(form.Description)
	if models.ValidStatus(form.Status) {
		if form.Status == models.LISTING_ACTIVE && listing.Status != models.LISTING_ACTIVE {
			allowed, err := lc.mayActivate(listing.OwnerID)
			if err != nil {
				return handleRepoError(c, "Listings", err)
			}
			if !allowed {
				return redirectInfo(c, listingLimitMessage, constants.PricingRoute)
			}
		}
		listing.Status = form.Status
	}
	if listing.AirportICAO != oldAirport {
		listing.Lat, listing.Lon = nil, nil
		if coords, ok := airports.Lookup(listing.AirportICAO); ok {
			listing.Lat, listing.Lon = &coords.Lat, &coords.Lon
		}
	}
	if err := listing.Validate(); err != nil {
		return redirectError(c, validationMessage(err), detailURL+"/edit")
	}
	if err := lc.repos.Listing.Update(listing); err != nil {
		return handleRepoError(c, "Listings", err)
	}

	marketplace.InvalidatePriceIntel(listing.AirportICAO)
	if oldAirport != listing.AirportICAO {
		marketplace.InvalidatePriceIntel(oldAirport)
	}
	return redirectSuccess(c, "Listing updated successfully!", detailURL)
}

// mayActivate applies the active listing limit to a listing that is being
// switched back to Active.
func (lc *ListingController) mayActivate(ownerID uint) (bool, error) {
	owner, err := lc.repos.User.GetByID(ownerID)
	if err != nil {
		return false, err
	}
	active, err := lc.repos.Listing.CountActiveByOwner(ownerID)
	if err != nil {
		return false, err
	}
	return entitlements.CanCreateListing(owner, active), nil
}
