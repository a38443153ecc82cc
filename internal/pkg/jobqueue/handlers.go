package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/hangarlinks/hangarlinks/app/models"
	"github.com/hangarlinks/hangarlinks/app/repository"
	"github.com/hangarlinks/hangarlinks/internal/pkg/imageprocessor"
	"github.com/hangarlinks/hangarlinks/internal/pkg/mail"
	"github.com/hangarlinks/hangarlinks/internal/pkg/marketplace"
	"github.com/hangarlinks/hangarlinks/internal/pkg/s3backup"
)

// Deps carries what the job handlers talk to.
type Deps struct {
	Repos        *repository.Repositories
	Mailer       mail.Mailer
	Backup       s3backup.Uploader // nil disables photo backups
	BackupConfig *s3backup.Config
	BaseURL      string
	AdminEmail   string
	ProcessPhoto func(ctx context.Context, photo *models.ListingPhoto, uploadDir string) (*imageprocessor.Result, error)
	Now          func() time.Time
}

// RegisterHandlers wires the four job types onto q.
func RegisterHandlers(q *Queue, d Deps) {
	if d.ProcessPhoto == nil {
		d.ProcessPhoto = imageprocessor.ProcessListingPhoto
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	h := &handlers{queue: q, deps: d}
	q.Handle(JobTypeProcessListingPhoto, h.processListingPhoto)
	q.Handle(JobTypeBackupListingPhoto, h.backupListingPhoto)
	q.Handle(JobTypeSendListingAlerts, h.sendListingAlerts)
	q.Handle(JobTypeNotifyAdmin, h.notifyAdmin)
}

type handlers struct {
	queue *Queue
	deps  Deps
}

func (h *handlers) processListingPhoto(ctx context.Context, job *Job) error {
	payload, err := PhotoJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	photo, err := h.deps.Repos.Listing.GetPhoto(payload.PhotoID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warnf("[JobQueue] Photo %d no longer exists, skipping", payload.PhotoID)
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := h.deps.ProcessPhoto(ctx, photo, payload.UploadDir); err != nil {
		return err
	}

	if payload.Backup && h.deps.Backup != nil {
		if _, err := h.queue.EnqueueJob(JobTypeBackupListingPhoto, payload.ToMap()); err != nil {
			log.Errorf("[JobQueue] Could not enqueue backup for photo %d: %v", photo.ID, err)
		}
	}
	return nil
}

func (h *handlers) backupListingPhoto(ctx context.Context, job *Job) error {
	if h.deps.Backup == nil || h.deps.BackupConfig == nil {
		log.Debug("[JobQueue] Photo backup disabled, skipping")
		return nil
	}
	payload, err := PhotoJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	photo, err := h.deps.Repos.Listing.GetPhoto(payload.PhotoID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if photo.BackedUpAt != nil {
		return nil
	}

	key := h.deps.BackupConfig.ObjectKey(photo.ListingID, photo.FileName, photo.CreatedAt)
	exists, err := h.deps.Backup.ObjectExists(ctx, key)
	if err != nil {
		return err
	}
	// a retry after a failed status update finds the object already there
	if !exists {
		if _, err := h.deps.Backup.UploadFile(ctx, imageprocessor.PhotoPath(photo, payload.UploadDir, "", ""), key); err != nil {
			return err
		}
	}
	return h.deps.Repos.Listing.UpdatePhoto(photo.ID, map[string]interface{}{"backed_up_at": h.deps.Now()})
}

func (h *handlers) sendListingAlerts(ctx context.Context, job *Job) error {
	payload, err := ListingAlertsPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	listing, err := h.deps.Repos.Listing.GetByID(payload.ListingID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !listing.IsActive() {
		return nil
	}

	subs, err := h.deps.Repos.User.AlertSubscribers(listing.OwnerID)
	if err != nil {
		return err
	}

	subject, body := mail.ListingAlert(h.deps.BaseURL, listing)
	sent := 0
	for i := range subs {
		sub := &subs[i]
		if !marketplace.AlertMatches(sub.User.ID, &sub.Settings, listing) {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// A failed recipient is not retried; a retry would mail everyone again.
		if err := h.deps.Mailer.Send(sub.User.Email, subject, body); err != nil {
			log.Errorf("[Alerts] Mail to user %d failed: %v", sub.User.ID, err)
			continue
		}
		sent++
	}
	log.Infof("[Alerts] Listing %d: %d alert(s) sent", listing.ID, sent)
	return nil
}

func (h *handlers) notifyAdmin(ctx context.Context, job *Job) error {
	if h.deps.AdminEmail == "" {
		log.Debug("[JobQueue] ADMIN_EMAIL not set, dropping admin notice")
		return nil
	}
	payload, err := AdminNoticePayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	subject, body := mail.AdminNotice(payload.Subject, payload.Text)
	return h.deps.Mailer.Send(h.deps.AdminEmail, subject, body)
}
