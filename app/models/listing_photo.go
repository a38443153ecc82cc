package models

import (
	"path"
	"strings"
	"time"
)

const (
	PHOTO_KIND_PHOTO  = "photo"
	PHOTO_KIND_HEALTH = "health"
)

// ListingPhoto is an uploaded hangar photo. Health photos document the
// hangar condition and feed the condition checklist.
type ListingPhoto struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	ListingID    uint       `gorm:"index;not null" json:"listing_id"`
	Kind         string     `gorm:"type:varchar(10);default:'photo'" json:"kind"`
	FileName     string     `gorm:"type:varchar(255);not null" json:"file_name"`
	FileSize     int64      `gorm:"type:bigint" json:"file_size"`
	Width        int        `json:"width"`
	Height       int        `json:"height"`
	HasThumbnail bool       `gorm:"default:false" json:"has_thumbnail"`
	HasWebp      bool       `gorm:"default:false" json:"has_webp"`
	CameraModel  *string    `gorm:"type:varchar(255)" json:"camera_model,omitempty"`
	TakenAt      *time.Time `gorm:"type:datetime" json:"taken_at,omitempty"`
	BackedUpAt   *time.Time `gorm:"type:timestamp;default:null" json:"-"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// BaseName returns the file name without extension.
func (p *ListingPhoto) BaseName() string {
	return strings.TrimSuffix(p.FileName, path.Ext(p.FileName))
}
