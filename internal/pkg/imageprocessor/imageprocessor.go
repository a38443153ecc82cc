package imageprocessor

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2/log"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	"golang.org/x/sync/errgroup"

	"github.com/hangarlinks/hangarlinks/app/models"
	"github.com/hangarlinks/hangarlinks/app/repository"
)

// Thumbnail sizes
const (
	SmallThumbnailSize  = 200
	MediumThumbnailSize = 500
)

// Variant directories below the upload folder
const (
	ThumbnailsDir = "thumbnails"
	WebPDir       = "webp"
	MaxWorkers    = 3
	webpQuality   = 85
)

// memoryThrottle bounds how many photos are decoded at the same time.
var memoryThrottle = make(chan struct{}, MaxWorkers)

var activeProcesses int32

// UpdatePhotoRecordFunc persists the processing result. Tests replace it.
var UpdatePhotoRecordFunc = func(photoID uint, fields map[string]interface{}) error {
	repos := repository.GetGlobalRepositories()
	if repos == nil {
		return fmt.Errorf("repositories not initialized")
	}
	return repos.Listing.UpdatePhoto(photoID, fields)
}

// Result describes what processing produced for one photo.
type Result struct {
	Width        int
	Height       int
	HasThumbnail bool
	HasWebp      bool
	Metadata     *Metadata
}

// Fields returns the listing_photos columns for r.
func (r *Result) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"width":         r.Width,
		"height":        r.Height,
		"has_thumbnail": r.HasThumbnail,
		"has_webp":      r.HasWebp,
	}
	if r.Metadata != nil {
		if r.Metadata.CameraModel != "" {
			fields["camera_model"] = r.Metadata.CameraModel
		}
		if r.Metadata.TakenAt != nil {
			fields["taken_at"] = *r.Metadata.TakenAt
		}
	}
	return fields
}

// ProcessListingPhoto builds the thumbnails and the WebP copy of a stored
// photo, reads its EXIF data and writes the result back to the photo row.
func ProcessListingPhoto(ctx context.Context, photo *models.ListingPhoto, uploadDir string) (*Result, error) {
	SetPhotoStatus(photo.ID, STATUS_PROCESSING)

	res, err := processFile(ctx, photo, uploadDir)
	if err != nil {
		SetPhotoStatus(photo.ID, STATUS_FAILED)
		return nil, err
	}

	if err := UpdatePhotoRecordFunc(photo.ID, res.Fields()); err != nil {
		SetPhotoStatus(photo.ID, STATUS_FAILED)
		return nil, fmt.Errorf("update photo %d: %w", photo.ID, err)
	}

	photo.Width, photo.Height = res.Width, res.Height
	photo.HasThumbnail, photo.HasWebp = res.HasThumbnail, res.HasWebp

	SetPhotoStatus(photo.ID, STATUS_COMPLETED)
	return res, nil
}

func processFile(ctx context.Context, photo *models.ListingPhoto, uploadDir string) (*Result, error) {
	select {
	case memoryThrottle <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-memoryThrottle }()

	n := atomic.AddInt32(&activeProcesses, 1)
	defer atomic.AddInt32(&activeProcesses, -1)

	originalPath := filepath.Join(uploadDir, photo.FileName)
	log.Infof("[ImageProcessor] Processing photo %d (%s, active: %d)", photo.ID, photo.FileName, n)

	meta, err := ExtractMetadata(originalPath)
	if err != nil {
		return nil, err
	}

	img, err := imaging.Open(originalPath, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("error opening photo: %w", err)
	}

	res := &Result{
		Width:    img.Bounds().Dx(),
		Height:   img.Bounds().Dy(),
		Metadata: meta,
	}

	// WebP uploads are served as they are; everything else gets a WebP copy.
	skipWebP := strings.EqualFold(filepath.Ext(photo.FileName), ".webp")

	g, gctx := errgroup.WithContext(ctx)
	for _, size := range []struct {
		name  string
		width int
	}{{"small", SmallThumbnailSize}, {"medium", MediumThumbnailSize}} {
		size := size
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			thumb := img
			if img.Bounds().Dx() > size.width {
				thumb = imaging.Resize(img, size.width, 0, imaging.Lanczos)
			}
			return saveWebP(thumb, PhotoPath(photo, uploadDir, "webp", size.name))
		})
	}
	if !skipWebP {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := saveWebP(img, PhotoPath(photo, uploadDir, "webp", "")); err != nil {
				log.Errorf("[ImageProcessor] WebP copy failed for photo %d: %v", photo.ID, err)
				return nil
			}
			res.HasWebp = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("error creating thumbnails: %w", err)
	}
	res.HasThumbnail = true

	log.Infof("[ImageProcessor] Photo %d processed: %dx%d webp=%v", photo.ID, res.Width, res.Height, res.HasWebp)
	return res, nil
}

// saveWebP saves an image in WebP format
func saveWebP(img image.Image, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}

	output, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("error creating WebP file: %w", err)
	}
	defer output.Close()

	options, err := encoder.NewLossyEncoderOptions(encoder.PresetPhoto, webpQuality)
	if err != nil {
		return fmt.Errorf("error creating encoder options: %w", err)
	}

	if err := webp.Encode(output, img, options); err != nil {
		return fmt.Errorf("error encoding WebP image: %w", err)
	}
	return nil
}

// PhotoPath returns the path of a photo variant. An empty format returns the original.
func PhotoPath(photo *models.ListingPhoto, uploadDir, format, size string) string {
	base := photo.BaseName()
	switch {
	case format == "webp" && size == "":
		return filepath.Join(uploadDir, WebPDir, base+".webp")
	case format == "webp" && (size == "small" || size == "medium"):
		return filepath.Join(uploadDir, ThumbnailsDir, size, base+".webp")
	default:
		return filepath.Join(uploadDir, photo.FileName)
	}
}

// RemoveVariants deletes the generated files of a photo.
func RemoveVariants(photo *models.ListingPhoto, uploadDir string) {
	for _, p := range []string{
		PhotoPath(photo, uploadDir, "webp", ""),
		PhotoPath(photo, uploadDir, "webp", "small"),
		PhotoPath(photo, uploadDir, "webp", "medium"),
	} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Warnf("[ImageProcessor] could not remove %s: %v", p, err)
		}
	}
}
