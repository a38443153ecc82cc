package imageprocessor

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
)

func init() {
	// Register Nikon and Canon maker notes
	exif.RegisterParsers(mknote.All...)
}

// Metadata is the EXIF subset kept for listing photos.
type Metadata struct {
	CameraModel string
	TakenAt     *time.Time
}

// ExtractMetadata reads camera model and capture time from a photo.
// Files without EXIF data yield an empty Metadata and no error.
func ExtractMetadata(filePath string) (*Metadata, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("error opening photo file: %w", err)
	}
	defer f.Close()

	meta := &Metadata{}
	x, err := exif.Decode(f)
	if err != nil {
		log.Debugf("[ImageProcessor] no EXIF data in %s: %v", filePath, err)
		return meta, nil
	}

	if m, err := x.Get(exif.Model); err == nil {
		meta.CameraModel = strings.TrimSpace(strings.Trim(m.String(), `"`))
	}
	if dt, err := x.DateTime(); err == nil {
		meta.TakenAt = &dt
	}
	return meta, nil
}
