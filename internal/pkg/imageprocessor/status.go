package imageprocessor

import (
	"fmt"
	"time"

	"github.com/hangarlinks/hangarlinks/app/models"
	"github.com/hangarlinks/hangarlinks/internal/pkg/cache"
)

// Format: photo:status:<id>
const PhotoStatusKeyFormat = "photo:status:%d"

// Status constants for photo processing
const (
	STATUS_PENDING    = "pending"
	STATUS_PROCESSING = "processing"
	STATUS_COMPLETED  = "completed"
	STATUS_FAILED     = "failed"
)

// Cache hooks, replaced in tests.
var (
	SetCacheImplementation = cache.Set
	GetCacheImplementation = cache.Get
)

// SetPhotoStatus records the processing state of a photo for 24 hours.
func SetPhotoStatus(photoID uint, status string) error {
	return SetCacheImplementation(fmt.Sprintf(PhotoStatusKeyFormat, photoID), status, 24*time.Hour)
}

func GetPhotoStatus(photoID uint) (string, error) {
	return GetCacheImplementation(fmt.Sprintf(PhotoStatusKeyFormat, photoID))
}

// IsPhotoProcessingComplete reports whether variants can be served. Photos
// without a cached status fall back to the flags stored on the row.
func IsPhotoProcessingComplete(photo *models.ListingPhoto) bool {
	status, err := GetPhotoStatus(photo.ID)
	if err == nil && status != "" {
		return status == STATUS_COMPLETED
	}
	return photo.HasThumbnail
}

func IsPhotoProcessingFailed(photoID uint) bool {
	if photoID == 0 {
		return false
	}
	status, err := GetPhotoStatus(photoID)
	return err == nil && status == STATUS_FAILED
}
