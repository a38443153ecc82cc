package jobqueue

import (
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/robfig/cron/v3"

	"github.com/hangarlinks/hangarlinks/app/models"
	"github.com/hangarlinks/hangarlinks/app/repository"
	"github.com/hangarlinks/hangarlinks/internal/pkg/env"
	"github.com/hangarlinks/hangarlinks/internal/pkg/metrics/counter"
	"github.com/hangarlinks/hangarlinks/internal/pkg/statistics"
)

// Task is a scheduled maintenance job run by the manager's cron.
type Task struct {
	Name string
	Spec string
	Run  func() error
}

// Manager manages the global job queue and scheduled tasks
type Manager struct {
	queue   *Queue
	cron    *cron.Cron
	tasks   []Task
	ids     []cron.EntryID
	mu      sync.Mutex
	running bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		globalManager = NewManager(NewQueue(env.GetEnvInt("JOBQUEUE_WORKERS", 5)), DefaultTasks())
	})
	return globalManager
}

func NewManager(q *Queue, tasks []Task) *Manager {
	return &Manager{queue: q, tasks: tasks}
}

// DefaultTasks are the marketplace maintenance schedules.
func DefaultTasks() []Task {
	return []Task{
		{Name: "expire-featured", Spec: "@hourly", Run: ExpireFeaturedListings},
		{Name: "expire-subscriptions", Spec: "@hourly", Run: ExpireLapsedAccess},
		{Name: "flush-counters", Spec: "@every 5s", Run: counter.FlushAll},
		{Name: "refresh-statistics", Spec: "@every 5m", Run: statistics.UpdateStatisticsCache},
	}
}

// ExpireFeaturedListings clears boosts whose featured period has ended.
func ExpireFeaturedListings() error {
	repos := repository.GetGlobalRepositories()
	if repos == nil {
		return fmt.Errorf("repositories not initialized")
	}
	n, err := repos.Listing.ExpireFeatured(time.Now())
	if err != nil {
		return err
	}
	if n > 0 {
		log.Infof("[JobQueue Manager] Expired %d featured listing(s)", n)
	}
	return nil
}

// ExpireLapsedAccess downgrades premium plans and analytics access past their expiry.
func ExpireLapsedAccess() error {
	repos := repository.GetGlobalRepositories()
	if repos == nil {
		return fmt.Errorf("repositories not initialized")
	}
	now := time.Now()
	subs, err := repos.User.ExpireSubscriptions(now)
	if err != nil {
		return err
	}
	analytics, err := repos.User.ExpireAnalyticsAccess(now)
	if err != nil {
		return err
	}
	if subs > 0 || analytics > 0 {
		log.Infof("[JobQueue Manager] Expired %d subscription(s), %d analytics grant(s)", subs, analytics)
	}
	return nil
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and the cron schedules
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	c := cron.New()
	ids := make([]cron.EntryID, 0, len(m.tasks))
	for _, task := range m.tasks {
		task := task
		id, err := c.AddFunc(task.Spec, func() {
			if err := task.Run(); err != nil {
				log.Errorf("[JobQueue Manager] %s failed: %v", task.Name, err)
			}
		})
		if err != nil {
			return fmt.Errorf("schedule %s (%q): %w", task.Name, task.Spec, err)
		}
		ids = append(ids, id)
	}

	log.Info("[JobQueue Manager] Starting job queue and scheduled tasks")
	m.queue.Start()
	c.Start()
	m.cron = c
	m.ids = ids
	m.running = true
	return nil
}

// Stop stops the cron, waits for running tasks and stops the queue
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and scheduled tasks...")
	<-m.cron.Stop().Done()
	m.cron = nil
	m.ids = nil
	m.queue.Stop()
	m.running = false
	log.Info("[JobQueue Manager] Stopped successfully")
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Entries lists the scheduled tasks with their next run time.
func (m *Manager) Entries() []ScheduledTask {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ScheduledTask, 0, len(m.tasks))
	for i, t := range m.tasks {
		st := ScheduledTask{Name: t.Name, Spec: t.Spec}
		if m.cron != nil && i < len(m.ids) {
			st.Next = m.cron.Entry(m.ids[i]).Next
		}
		out = append(out, st)
	}
	return out
}

// ScheduledTask is the admin view of a cron task.
type ScheduledTask struct {
	Name string
	Spec string
	Next time.Time
}

// EnqueueListingPhoto queues thumbnail/WebP processing, with an optional S3 backup afterwards.
func (m *Manager) EnqueueListingPhoto(photo *models.ListingPhoto, uploadDir string, backup bool) (*Job, error) {
	return m.queue.EnqueueJob(JobTypeProcessListingPhoto, PhotoJobPayload{
		PhotoID:   photo.ID,
		ListingID: photo.ListingID,
		FileName:  photo.FileName,
		UploadDir: uploadDir,
		Backup:    backup,
	}.ToMap())
}

func (m *Manager) EnqueueListingAlerts(listingID uint) (*Job, error) {
	return m.queue.EnqueueJob(JobTypeSendListingAlerts, ListingAlertsPayload{ListingID: listingID}.ToMap())
}

// NotifyAdmin queues a mail to ADMIN_EMAIL. Failures are logged, not returned.
func (m *Manager) NotifyAdmin(subject, text string) {
	if _, err := m.queue.EnqueueJob(JobTypeNotifyAdmin, AdminNoticePayload{Subject: subject, Text: text}.ToMap()); err != nil {
		log.Errorf("[JobQueue Manager] Could not queue admin notice %q: %v", subject, err)
	}
}
