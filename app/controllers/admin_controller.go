package controllers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/errgroup"

	"github.com/hangarlinks/hangarlinks/app/models"
	"github.com/hangarlinks/hangarlinks/app/repository"
	"github.com/hangarlinks/hangarlinks/internal/pkg/constants"
	"github.com/hangarlinks/hangarlinks/internal/pkg/jobqueue"
	"github.com/hangarlinks/hangarlinks/internal/pkg/statistics"
	"github.com/hangarlinks/hangarlinks/internal/pkg/viewmodel"
	"github.com/hangarlinks/hangarlinks/views/components"
)

const (
	adminListingsRoute = "/admin/listings"
	adminQueueRoute    = "/admin/queue"
)

// cachePatterns are the derived caches an admin may purge. They rebuild on demand.
var cachePatterns = []string{"price_intel:*", "statistics:*"}

var listingStatuses = []string{models.LISTING_ACTIVE, models.LISTING_INACTIVE, models.LISTING_RENTED}

// Scheduler is the scheduling side of the job manager shown on the queue page.
type Scheduler interface {
	IsRunning() bool
	Entries() []jobqueue.ScheduledTask
}

type AdminController struct {
	repos     *repository.Repositories
	scheduler Scheduler
}

func NewAdminController(repos *repository.Repositories, scheduler Scheduler) *AdminController {
	return &AdminController{repos: repos, scheduler: scheduler}
}

// statsWindow is how far back the admin's per-day tables reach.
const statsWindow = 14 * 24 * time.Hour

type adminListingStats struct {
	Total        int64
	Active       int64
	Featured     int64
	Users        int64
	PremiumUsers int64
	NewListings  []models.DailyStats
	Signups      []models.DailyStats
}

func (ac *AdminController) listingStats() (adminListingStats, error) {
	var s adminListingStats
	g := new(errgroup.Group)
	g.Go(func() (err error) { s.Total, err = ac.repos.Listing.Count(); return })
	g.Go(func() (err error) { s.Active, err = ac.repos.Listing.CountActive(); return })
	g.Go(func() (err error) { s.Featured, err = ac.repos.Listing.CountFeatured(); return })
	g.Go(func() (err error) { s.Users, err = ac.repos.User.Count(); return })
	g.Go(func() (err error) { s.PremiumUsers, err = ac.repos.User.CountPremium(); return })

	to := time.Now()
	from := to.Add(-statsWindow)
	g.Go(func() (err error) { s.NewListings, err = ac.repos.Listing.GetDailyStats(from, to); return })
	g.Go(func() (err error) { s.Signups, err = ac.repos.User.GetDailyStats(from, to); return })
	return s, g.Wait()
}

func (ac *AdminController) HandleListings(c *fiber.Ctx) error {
	filter := repository.AdminListingFilter{
		Query:    strings.ToUpper(strings.TrimSpace(c.Query("q"))),
		Status:   c.Query("status"),
		Featured: c.Query("featured"),
	}
	page := queryPage(c)
	listings, total, err := ac.repos.Listing.AdminSearch(filter, page, constants.AdminListingsPerPage)
	if err != nil {
		return handleRepoError(c, "Admin", err)
	}
	stats, err := ac.listingStats()
	if err != nil {
		return handleRepoError(c, "Admin", err)
	}
	return render(c, "admin/listings", "Admin listings", fiber.Map{
		"Listings": listings,
		"Stats":    stats,
		"Filter":   filter,
		"Statuses": listingStatuses,
		"Pagination": viewmodel.Pagination{
			Page:    page,
			PerPage: constants.AdminListingsPerPage,
			Total:   total,
			Query:   queryWithoutPage(c),
		},
	})
}

// HandleToggleFeatured flips the featured flag. Unfeaturing clears the paid tier.
func (ac *AdminController) HandleToggleFeatured(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return notFound(c)
	}
	listing, err := ac.repos.Listing.GetByID(id)
	if err != nil {
		return handleRepoError(c, "Admin", err)
	}
	fields := map[string]interface{}{"is_featured": !listing.IsFeatured}
	if listing.IsFeatured {
		fields["featured_tier"] = ""
		fields["featured_expires_at"] = nil
	}
	if err := ac.repos.Listing.UpdateFields(listing.ID, fields); err != nil {
		return handleRepoError(c, "Admin", err)
	}
	statistics.ResetCacheUpdateTimer()

	state := "Featured"
	if listing.IsFeatured {
		state = "Unfeatured"
	}
	return redirectSuccess(c, fmt.Sprintf("Listing %s #%d: %s", listing.AirportICAO, listing.ID, state), adminListingsRoute)
}

func (ac *AdminController) queueStats() (components.QueueStats, error) {
	var s components.QueueStats
	snap, err := ac.repos.Queue.Snapshot(repository.QueueKeys{
		Pending:    jobqueue.JobQueueKey,
		Processing: jobqueue.JobProcessingKey,
		Delayed:    jobqueue.JobDelayedKey,
		Stats:      jobqueue.JobStatsKey,
	})
	if err != nil {
		return s, err
	}
	s.Pending, s.Processing, s.Delayed = snap.Pending, snap.Processing, snap.Delayed
	s.Completed = hashInt(snap.Counts, string(jobqueue.JobStatusCompleted))
	s.Failed = hashInt(snap.Counts, string(jobqueue.JobStatusFailed))
	s.Retrying = hashInt(snap.Counts, string(jobqueue.JobStatusRetrying))
	if ac.scheduler != nil {
		s.Running = ac.scheduler.IsRunning()
	}
	return s, nil
}

func hashInt(m map[string]string, field string) int64 {
	n, _ := strconv.ParseInt(m[field], 10, 64)
	return n
}

func (ac *AdminController) HandleQueue(c *fiber.Ctx) error {
	stats, err := ac.queueStats()
	if err != nil {
		log.Warnf("[Admin] queue stats: %v", err)
	}
	statsHTML, err := components.HTML(c.UserContext(), components.QueueStatsTable(stats))
	if err != nil {
		return handleRepoError(c, "Admin", err)
	}
	var tasks []jobqueue.ScheduledTask
	if ac.scheduler != nil {
		tasks = ac.scheduler.Entries()
	}
	return render(c, "admin/queue", "Job queue", fiber.Map{
		"StatsHTML": statsHTML,
		"Tasks":     tasks,
	})
}

// HandleQueueData renders the stats fragment polled by the queue page.
func (ac *AdminController) HandleQueueData(c *fiber.Ctx) error {
	stats, err := ac.queueStats()
	if err != nil {
		log.Errorf("[Admin] queue stats: %v", err)
		return c.Status(fiber.StatusInternalServerError).SendString("Queue statistics are unavailable.")
	}
	c.Type("html")
	return components.QueueStatsTable(stats).Render(c.UserContext(), c.Response().BodyWriter())
}

// HandlePurgeCache drops the derived price and statistics caches.
func (ac *AdminController) HandlePurgeCache(c *fiber.Ctx) error {
	keys, err := ac.repos.Queue.FindKeysByPatterns(cachePatterns)
	if err != nil {
		log.Errorf("[Admin] scan cache keys: %v", err)
		return redirectError(c, "Could not read the cache.", adminQueueRoute)
	}
	deleted, err := ac.repos.Queue.DeleteKeys(keys)
	if err != nil {
		log.Errorf("[Admin] purge cache: %v", err)
		return redirectError(c, "Could not purge the cache.", adminQueueRoute)
	}
	statistics.ResetCacheUpdateTimer()
	log.Infof("[Admin] purged %d cache keys", deleted)
	return redirectSuccess(c, fmt.Sprintf("Purged %d cached entries.", deleted), adminQueueRoute)
}
