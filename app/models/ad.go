package models

import "time"

const (
	AD_PLACEMENT_SIDEBAR = "sidebar"
	AD_PLACEMENT_LISTING = "listing"
	AD_PLACEMENT_FEED    = "feed"
)

type Ad struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"type:varchar(200);not null" json:"title" validate:"required,max=200"`
	ImageURL    string    `gorm:"type:varchar(500);default:''" json:"image_url" validate:"omitempty,url,max=500"`
	LinkURL     string    `gorm:"type:varchar(500);not null" json:"link_url" validate:"required,url,max=500"`
	Placement   string    `gorm:"type:varchar(50);default:'sidebar';index" json:"placement" validate:"oneof=sidebar listing feed"`
	Impressions int       `gorm:"default:0" json:"impressions"`
	Clicks      int       `gorm:"default:0" json:"clicks"`
	Active      bool      `gorm:"default:false;index" json:"active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// CTR returns the click-through rate in percent.
func (a *Ad) CTR() float64 {
	if a.Impressions == 0 {
		return 0
	}
	return float64(a.Clicks) / float64(a.Impressions) * 100
}

// AdStats aggregates the ad inventory for the admin page.
type AdStats struct {
	ActiveCount      int64
	TotalImpressions int64
	TotalClicks      int64
}
