package imageprocessor

import (
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/hangarlinks/hangarlinks/app/models"
	"github.com/hangarlinks/hangarlinks/internal/pkg/constants"
)

// AcceptsWebP checks the browser Accept header.
func AcceptsWebP(c *fiber.Ctx) bool {
	return strings.Contains(c.Get(fiber.HeaderAccept), "image/webp")
}

// PhotoURL returns the public URL of the best variant the browser can show.
// The upload folder is mounted at /uploads.
func PhotoURL(c *fiber.Ctx, photo *models.ListingPhoto, size string) string {
	return "/" + filepath.ToSlash(PhotoPath(photo, constants.UploadsPath, variantFormat(AcceptsWebP(c), photo, size), variantSize(photo, size)))
}

func variantFormat(webpOK bool, photo *models.ListingPhoto, size string) string {
	if !webpOK {
		return ""
	}
	if size != "" && photo.HasThumbnail {
		return "webp"
	}
	if size == "" && photo.HasWebp {
		return "webp"
	}
	return ""
}

func variantSize(photo *models.ListingPhoto, size string) string {
	if !photo.HasThumbnail {
		return ""
	}
	return size
}
