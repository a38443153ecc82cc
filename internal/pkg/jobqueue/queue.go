package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hangarlinks/hangarlinks/internal/pkg/cache"
	"github.com/hangarlinks/hangarlinks/internal/pkg/metrics"
)

// Redis layout. Job bodies live under JobKeyPrefix+id; the lists and the
// sorted set only carry ids.
const (
	JobKeyPrefix     = "job:"
	JobQueueKey      = "job_queue"
	JobProcessingKey = "job_processing"
	JobStatsKey      = "job_stats"
	JobDelayedKey    = "job_delayed" // score = unix time the retry is due

	DefaultMaxRetries = 3
	JobTTL            = 24 * time.Hour

	defaultWorkers = 3
	stuckAfter     = 10 * time.Minute
	sweepInterval  = time.Minute
)

var errNoClient = errors.New("job queue has no redis client")

// Handler executes one job. A returned error schedules a retry while
// attempts remain.
type Handler func(ctx context.Context, job *Job) error

// Queue is a reliable Redis list queue: BRPOPLPUSH moves an id to the
// processing list, and it leaves that list only once the run is recorded.
type Queue struct {
	client       *redis.Client
	workers      int
	handlers     map[JobType]Handler
	pollInterval time.Duration
	now          func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewQueue creates a queue on the shared cache client.
func NewQueue(workers int) *Queue {
	return NewQueueWithClient(cache.GetClient(), workers)
}

func NewQueueWithClient(client *redis.Client, workers int) *Queue {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Queue{
		client:       client,
		workers:      workers,
		handlers:     make(map[JobType]Handler),
		pollInterval: time.Second,
		now:          time.Now,
	}
}

// Handle registers the handler for a job type. Register before Start.
func (q *Queue) Handle(jobType JobType, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = h
}

func (q *Queue) handler(jobType JobType) (Handler, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	h, ok := q.handlers[jobType]
	return h, ok
}

// Start launches the workers, the retry promoter and the stuck-job sweeper.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	q.running = true
	log.Infof("[JobQueue] Starting %d workers", q.workers)

	for i := 0; i < q.workers; i++ {
		q.spawn(func() { q.work(ctx, i) })
	}
	q.spawn(func() {
		q.every(ctx, q.pollInterval, func() error {
			_, err := q.PromoteDue(ctx, q.now())
			return err
		})
	})
	q.spawn(func() {
		q.every(ctx, sweepInterval, func() error {
			_, err := q.RecoverStuck(ctx, q.now(), stuckAfter)
			return err
		})
	})
}

// Stop cancels every goroutine and waits for in-flight jobs to finish.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	q.wg.Wait()
	log.Info("[JobQueue] All workers stopped")
}

func (q *Queue) spawn(fn func()) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		fn()
	}()
}

// every runs fn on each tick until ctx is done.
func (q *Queue) every(ctx context.Context, interval time.Duration, fn func() error) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := fn(); err != nil && ctx.Err() == nil {
				log.Errorf("[JobQueue] %v", err)
			}
		}
	}
}

func (q *Queue) work(ctx context.Context, worker int) {
	for ctx.Err() == nil {
		job, err := q.dequeueJob(ctx)
		switch {
		case errors.Is(err, redis.Nil), ctx.Err() != nil:
			continue
		case err != nil:
			log.Errorf("[JobQueue] Worker %d: dequeue: %v", worker, err)
			select {
			case <-ctx.Done():
			case <-time.After(q.pollInterval):
			}
			continue
		}
		log.Debugf("[JobQueue] Worker %d running %s (%s)", worker, job.ID, job.Type)
		// Finish the current job even when Stop is called mid-run.
		q.processJob(context.WithoutCancel(ctx), job)
	}
}

// EnqueueJob stores a new pending job and pushes it onto the queue.
func (q *Queue) EnqueueJob(jobType JobType, payload map[string]interface{}) (*Job, error) {
	if q.client == nil {
		return nil, errNoClient
	}
	ctx := context.Background()
	now := q.now()
	job := &Job{
		ID:         uuid.NewString(),
		Type:       jobType,
		Status:     JobStatusPending,
		Payload:    payload,
		CreatedAt:  now,
		UpdatedAt:  now,
		MaxRetries: DefaultMaxRetries,
	}
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}

	_, err = q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, JobKeyPrefix+job.ID, data, JobTTL)
		p.LPush(ctx, JobQueueKey, job.ID)
		p.HIncrBy(ctx, JobStatsKey, string(JobStatusPending), 1)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", jobType, err)
	}
	metrics.JobEnqueued(string(job.Type))
	log.Infof("[JobQueue] Enqueued job %s (Type: %s)", job.ID, job.Type)
	return job, nil
}

// dequeueJob blocks for up to one poll interval. Ids whose body is gone or
// unreadable are dropped from the processing list.
func (q *Queue) dequeueJob(ctx context.Context) (*Job, error) {
	id, err := q.client.BRPopLPush(ctx, JobQueueKey, JobProcessingKey, q.pollInterval).Result()
	if err != nil {
		return nil, err
	}
	job, err := q.GetJob(ctx, id)
	if err != nil {
		q.release(ctx, id)
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}
	return job, nil
}

func (q *Queue) processJob(ctx context.Context, job *Job) {
	job.Start(q.now())
	q.save(ctx, job)

	h, ok := q.handler(job.Type)
	var err error
	if ok {
		err = h(ctx, job)
	} else {
		err = fmt.Errorf("unknown job type: %s", job.Type)
		job.MaxRetries = 0
	}

	if err == nil {
		job.Complete(q.now())
		q.count(ctx, JobStatusCompleted)
		if derr := q.client.Del(ctx, JobKeyPrefix+job.ID).Err(); derr != nil {
			log.Errorf("[JobQueue] drop finished job %s: %v", job.ID, derr)
		}
		q.release(ctx, job.ID)
		return
	}

	if job.Fail(err.Error(), q.now()) {
		due := q.now().Add(job.RetryDelay())
		log.Warnf("[JobQueue] Job %s failed (attempt %d/%d), retry at %s: %v",
			job.ID, job.RetryCount, job.MaxRetries+1, due.Format(time.RFC3339), err)
		if zerr := q.client.ZAdd(ctx, JobDelayedKey, redis.Z{Score: float64(due.Unix()), Member: job.ID}).Err(); zerr != nil {
			log.Errorf("[JobQueue] schedule retry for %s: %v", job.ID, zerr)
		}
		q.count(ctx, JobStatusRetrying)
	} else {
		log.Errorf("[JobQueue] Job %s failed permanently: %v", job.ID, err)
		q.count(ctx, JobStatusFailed)
	}
	q.save(ctx, job)
	q.release(ctx, job.ID)
}

// PromoteDue requeues every delayed job due at or before now.
func (q *Queue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	ids, err := q.client.ZRangeByScore(ctx, JobDelayedKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("read delayed jobs: %w", err)
	}
	promoted := 0
	for _, id := range ids {
		// ZRem decides which promoter owns the id when several instances run.
		removed, err := q.client.ZRem(ctx, JobDelayedKey, id).Result()
		if err != nil {
			return promoted, err
		}
		if removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, JobQueueKey, id).Err(); err != nil {
			return promoted, err
		}
		promoted++
	}
	return promoted, nil
}

// RecoverStuck puts jobs that have sat in processing longer than maxAge back
// on the queue. That happens when a worker dies mid-run.
func (q *Queue) RecoverStuck(ctx context.Context, now time.Time, maxAge time.Duration) (int, error) {
	ids, err := q.client.LRange(ctx, JobProcessingKey, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("read processing list: %w", err)
	}
	recovered := 0
	for _, id := range ids {
		job, err := q.GetJob(ctx, id)
		if err != nil || job.Status != JobStatusProcessing {
			q.release(ctx, id)
			continue
		}
		if age := now.Sub(job.StartedAt()); age <= maxAge {
			continue
		}
		log.Warnf("[JobQueue] Recovering stuck job %s (%s)", job.ID, job.Type)
		job.Status = JobStatusPending
		job.ErrorMsg = "recovered after worker stalled"
		job.UpdatedAt = now
		q.save(ctx, job)

		_, err = q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.LRem(ctx, JobProcessingKey, 1, id)
			p.RPush(ctx, JobQueueKey, id)
			return nil
		})
		if err != nil {
			return recovered, err
		}
		recovered++
	}
	return recovered, nil
}

// GetJob loads a stored job. Completed jobs are deleted, so they return redis.Nil.
func (q *Queue) GetJob(ctx context.Context, id string) (*Job, error) {
	data, err := q.client.Get(ctx, JobKeyPrefix+id).Bytes()
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

func (q *Queue) save(ctx context.Context, job *Job) {
	data, err := json.Marshal(job)
	if err != nil {
		log.Errorf("[JobQueue] encode job %s: %v", job.ID, err)
		return
	}
	if err := q.client.Set(ctx, JobKeyPrefix+job.ID, data, JobTTL).Err(); err != nil {
		log.Errorf("[JobQueue] store job %s: %v", job.ID, err)
	}
}

func (q *Queue) release(ctx context.Context, id string) {
	if err := q.client.LRem(ctx, JobProcessingKey, 1, id).Err(); err != nil {
		log.Errorf("[JobQueue] release job %s: %v", id, err)
	}
}

func (q *Queue) count(ctx context.Context, status JobStatus) {
	if err := q.client.HIncrBy(ctx, JobStatsKey, string(status), 1).Err(); err != nil {
		log.Errorf("[JobQueue] count %s: %v", status, err)
	}
}
