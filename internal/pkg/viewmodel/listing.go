package viewmodel

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/hangarlinks/hangarlinks/app/models"
	"github.com/hangarlinks/hangarlinks/internal/pkg/imageprocessor"
)

// Photo is a listing photo with the variant URLs the browser can display.
type Photo struct {
	ID        uint
	URL       string
	SmallURL  string
	MediumURL string
	Width     int
	Height    int

	// Processing is true until the thumbnail job has run.
	Processing bool
	Failed     bool

	CameraModel string
	TakenAt     string
}

func NewPhoto(c *fiber.Ctx, p *models.ListingPhoto) Photo {
	vm := Photo{
		ID:         p.ID,
		URL:        imageprocessor.PhotoURL(c, p, ""),
		SmallURL:   imageprocessor.PhotoURL(c, p, "small"),
		MediumURL:  imageprocessor.PhotoURL(c, p, "medium"),
		Width:      p.Width,
		Height:     p.Height,
		Processing: !imageprocessor.IsPhotoProcessingComplete(p),
		Failed:     imageprocessor.IsPhotoProcessingFailed(p.ID),
	}
	if p.CameraModel != nil {
		vm.CameraModel = *p.CameraModel
	}
	if p.TakenAt != nil {
		vm.TakenAt = p.TakenAt.Format("2006-01-02 15:04")
	}
	return vm
}

// ListingCard is a listing as shown in result lists.
type ListingCard struct {
	Listing  models.Listing
	Cover    *Photo
	Featured bool
	Premium  bool
	Active   bool
	Score    int
}

func NewListingCard(c *fiber.Ctx, l models.Listing, now time.Time) ListingCard {
	card := ListingCard{
		Listing:  l,
		Featured: l.IsFeaturedAt(now),
		Premium:  l.IsPremiumListing || l.Owner.HasPremium(),
		Active:   l.IsActive(),
	}
	if p := l.CoverPhoto(); p != nil {
		vm := NewPhoto(c, p)
		card.Cover = &vm
	}
	return card
}

func NewListingCards(c *fiber.Ctx, listings []models.Listing, now time.Time) []ListingCard {
	cards := make([]ListingCard, 0, len(listings))
	for _, l := range listings {
		cards = append(cards, NewListingCard(c, l, now))
	}
	return cards
}

// ListingDetail is the listing page.
type ListingDetail struct {
	ListingCard
	Photos       []Photo
	HealthPhotos []Photo
}

func NewListingDetail(c *fiber.Ctx, l models.Listing, now time.Time) ListingDetail {
	d := ListingDetail{ListingCard: NewListingCard(c, l, now)}
	for i := range l.Photos {
		vm := NewPhoto(c, &l.Photos[i])
		if l.Photos[i].Kind == models.PHOTO_KIND_HEALTH {
			d.HealthPhotos = append(d.HealthPhotos, vm)
		} else {
			d.Photos = append(d.Photos, vm)
		}
	}
	return d
}

// Pagination is the pager under result lists.
type Pagination struct {
	Page    int
	PerPage int
	Total   int64
	Query   string
}

func (p Pagination) HasPrev() bool { return p.Page > 1 }

func (p Pagination) HasNext() bool { return int64(p.Page*p.PerPage) < p.Total }

func (p Pagination) Prev() int { return p.Page - 1 }

func (p Pagination) Next() int { return p.Page + 1 }
