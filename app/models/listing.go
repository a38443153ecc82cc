package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	LISTING_ACTIVE   = "Active"
	LISTING_INACTIVE = "Inactive"
	LISTING_RENTED   = "Rented"

	FEATURED_SILVER   = "silver"
	FEATURED_GOLD     = "gold"
	FEATURED_PLATINUM = "platinum"
)

type Listing struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	AirportICAO        string     `gorm:"column:airport_icao;type:varchar(4);not null;index" json:"airport_icao" validate:"required,len=4,alphanum"`
	SizeSqft           int        `gorm:"index" json:"size_sqft" validate:"gte=0"`
	Covered            bool       `gorm:"default:true;index" json:"covered"`
	PriceMonth         float64    `gorm:"not null;index" json:"price_month" validate:"gt=0"`
	Description        string     `gorm:"type:text" json:"description" validate:"max=5000"`
	Status             string     `gorm:"type:varchar(20);default:'Active';index" json:"status" validate:"oneof=Active Inactive Rented"`
	IsFeatured         bool       `gorm:"default:false;index" json:"is_featured"`
	FeaturedExpiresAt  *time.Time `gorm:"type:timestamp;default:null" json:"featured_expires_at,omitempty"`
	FeaturedTier       string     `gorm:"type:varchar(20);default:''" json:"featured_tier,omitempty"`
	InsuranceActive    bool       `gorm:"default:false" json:"insurance_active"`
	ConditionVerified  bool       `gorm:"default:false" json:"condition_verified"`
	ChecklistCompleted bool       `gorm:"default:false" json:"checklist_completed"`
	Likes              int        `gorm:"default:0" json:"likes"`
	ViewCount          int        `gorm:"default:0" json:"view_count"`
	VideoURL           string     `gorm:"type:varchar(500);default:''" json:"video_url,omitempty" validate:"omitempty,url,max=500"`
	VirtualTourURL     string     `gorm:"type:varchar(500);default:''" json:"virtual_tour_url,omitempty" validate:"omitempty,url,max=500"`
	HealthScore        int        `gorm:"default:0" json:"health_score"`
	AvailabilityStart  *time.Time `gorm:"type:date;default:null" json:"availability_start,omitempty"`
	AvailabilityEnd    *time.Time `gorm:"type:date;default:null" json:"availability_end,omitempty"`
	IsPremiumListing   bool       `gorm:"default:false;index" json:"is_premium_listing"`
	Lat                *float64   `gorm:"type:decimal(10,6)" json:"lat,omitempty"`
	Lon                *float64   `gorm:"type:decimal(10,6)" json:"lon,omitempty"`
	OwnerID            uint       `gorm:"not null;index" json:"owner_id"`
	Owner              User       `gorm:"foreignKey:OwnerID" json:"owner,omitempty" validate:"-"`
	// relations
	Photos    []ListingPhoto `gorm:"foreignKey:ListingID" json:"photos,omitempty" validate:"-"`
	CreatedAt time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (l *Listing) Validate() error {
	v := validator.New()

	return v.Struct(l)
}

// BeforeSave keeps the airport code in its canonical upper-case form.
func (l *Listing) BeforeSave(tx *gorm.DB) error {
	l.AirportICAO = strings.ToUpper(strings.TrimSpace(l.AirportICAO))
	if l.Status == "" {
		l.Status = LISTING_ACTIVE
	}
	return nil
}

func (l *Listing) IsActive() bool {
	return l.Status == LISTING_ACTIVE
}

// IsFeaturedAt reports whether the featured boost is still running at t.
func (l *Listing) IsFeaturedAt(t time.Time) bool {
	if !l.IsFeatured {
		return false
	}
	return l.FeaturedExpiresAt == nil || l.FeaturedExpiresAt.After(t)
}

// PhotosOfKind filters the loaded photos by kind.
func (l *Listing) PhotosOfKind(kind string) []ListingPhoto {
	var out []ListingPhoto
	for _, p := range l.Photos {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

// CoverPhoto returns the first regular photo, or nil.
func (l *Listing) CoverPhoto() *ListingPhoto {
	for i := range l.Photos {
		if l.Photos[i].Kind == PHOTO_KIND_PHOTO {
			return &l.Photos[i]
		}
	}
	return nil
}

// ValidStatus reports whether s is a known listing status.
func ValidStatus(s string) bool {
	switch s {
	case LISTING_ACTIVE, LISTING_INACTIVE, LISTING_RENTED:
		return true
	}
	return false
}
