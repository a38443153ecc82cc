package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/hangarlinks/hangarlinks/app/models"
	"github.com/hangarlinks/hangarlinks/app/repository"
	"github.com/hangarlinks/hangarlinks/internal/pkg/metrics/counter"
)

const adminAdsRoute = "/admin/ads"

var adPlacements = []string{models.AD_PLACEMENT_SIDEBAR, models.AD_PLACEMENT_LISTING, models.AD_PLACEMENT_FEED}

type AdController struct {
	ads repository.AdRepository
}

func NewAdController(ads repository.AdRepository) *AdController {
	return &AdController{ads: ads}
}

// HandleAdminAds lists the inventory with totals and creates ads on POST.
func (ac *AdController) HandleAdminAds(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodPost {
		ad := &models.Ad{
			Title:     strings.TrimSpace(c.FormValue("title")),
			ImageURL:  strings.TrimSpace(c.FormValue("image_url")),
			LinkURL:   strings.TrimSpace(c.FormValue("link_url")),
			Placement: strings.TrimSpace(c.FormValue("placement", models.AD_PLACEMENT_SIDEBAR)),
			Active:    true,
		}
		if err := validate.Struct(ad); err != nil {
			return redirectError(c, "Ads need a title, a valid link URL and a placement.", adminAdsRoute)
		}
		if err := ac.ads.Create(ad); err != nil {
			return handleRepoError(c, "Ads", err)
		}
		return redirectSuccess(c, "Ad created successfully!", adminAdsRoute)
	}

	ads, err := ac.ads.List()
	if err != nil {
		return handleRepoError(c, "Ads", err)
	}
	stats, err := ac.ads.Stats()
	if err != nil {
		log.Errorf("[Ads] stats: %v", err)
		stats = &models.AdStats{}
	}
	return render(c, "admin/ads", "Ads", fiber.Map{
		"Ads":        ads,
		"Stats":      stats,
		"Placements": adPlacements,
	})
}

func (ac *AdController) HandleToggle(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return notFound(c)
	}
	if err := ac.ads.Toggle(id); err != nil {
		return handleRepoError(c, "Ads", err)
	}
	ad, err := ac.ads.GetByID(id)
	if err != nil {
		return handleRepoError(c, "Ads", err)
	}
	state := "disabled"
	if ad.Active {
		state = "enabled"
	}
	return redirectSuccess(c, "Ad "+state, adminAdsRoute)
}

func (ac *AdController) HandleDelete(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return notFound(c)
	}
	if err := ac.ads.Delete(id); err != nil {
		return handleRepoError(c, "Ads", err)
	}
	return redirectSuccess(c, "Ad deleted", adminAdsRoute)
}

// HandleClick counts the click and sends the visitor to the advertiser.
func (ac *AdController) HandleClick(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return notFound(c)
	}
	ad, err := ac.ads.GetByID(id)
	if err != nil {
		return handleRepoError(c, "Ads", err)
	}
	if !strings.HasPrefix(ad.LinkURL, "http://") && !strings.HasPrefix(ad.LinkURL, "https://") {
		return notFound(c)
	}
	if err := counter.AddAdClick(ad.ID); err != nil {
		log.Debugf("[Ads] click counter: %v", err)
	}
	return c.Redirect(ad.LinkURL, fiber.StatusFound)
}
