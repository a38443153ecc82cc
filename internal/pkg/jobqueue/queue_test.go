package jobqueue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// TestNewQueue tests the queue constructor
func TestNewQueue(t *testing.T) {
	tests := []struct {
		name            string
		workers         int
		expectedWorkers int
	}{
		{"Valid worker count", 5, 5},
		{"Zero workers", 0, 3},
		{"Negative workers", -1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := NewQueueWithClient(nil, tt.workers)

			assert.NotNil(t, queue)
			assert.Equal(t, tt.expectedWorkers, queue.workers)
			assert.NotNil(t, queue.handlers)
			assert.False(t, queue.running)
		})
	}
}

func TestConstants(t *testing.T) {
	assert.Equal(t, "job:", JobKeyPrefix)
	assert.Equal(t, "job_queue", JobQueueKey)
	assert.Equal(t, "job_processing", JobProcessingKey)
	assert.Equal(t, "job_stats", JobStatsKey)
	assert.Equal(t, "job_delayed", JobDelayedKey)

	assert.Equal(t, 3, DefaultMaxRetries)
	assert.Equal(t, 24*time.Hour, JobTTL)
}

func TestEnqueueWithoutClient(t *testing.T) {
	_, err := NewQueueWithClient(nil, 1).EnqueueJob(JobTypeNotifyAdmin, nil)
	assert.Error(t, err)
}

func TestQueue_ProcessesJobs(t *testing.T) {
	client := newIsolatedRedisClient(t, isolatedJobQueueTestRedisDB)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	q := NewQueueWithClient(client, 2)
	q.pollInterval = 50 * time.Millisecond

	var handled int32
	q.Handle(JobTypeNotifyAdmin, func(ctx context.Context, job *Job) error {
		p, err := AdminNoticePayloadFromMap(job.Payload)
		assert.NoError(t, err)
		assert.Equal(t, "hello", p.Subject)
		atomic.AddInt32(&handled, 1)
		return nil
	})

	q.Start()
	for i := 0; i < 3; i++ {
		_, err := q.EnqueueJob(JobTypeNotifyAdmin, AdminNoticePayload{Subject: "hello"}.ToMap())
		require.NoError(t, err)
	}

	ok := waitFor(func() bool { return atomic.LoadInt32(&handled) == 3 }, 5*time.Second)
	q.Stop()
	require.True(t, ok, "jobs were not processed")

	ctx := context.Background()
	completed, err := client.HGet(ctx, JobStatsKey, string(JobStatusCompleted)).Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(3), completed)
	assert.Zero(t, client.LLen(ctx, JobProcessingKey).Val())
}

func TestQueue_FailedJobIsDelayedAndPromoted(t *testing.T) {
	client := newIsolatedRedisClient(t, isolatedJobQueueTestRedisDB)
	ctx := context.Background()
	q := NewQueueWithClient(client, 1)
	q.Handle(JobTypeSendListingAlerts, func(ctx context.Context, job *Job) error {
		return errors.New("smtp down")
	})

	job, err := q.EnqueueJob(JobTypeSendListingAlerts, ListingAlertsPayload{ListingID: 4}.ToMap())
	require.NoError(t, err)

	dequeued, err := q.dequeueJob(ctx)
	require.NoError(t, err)
	q.processJob(ctx, dequeued)

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusRetrying, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Equal(t, "smtp down", stored.ErrorMsg)

	assert.Equal(t, int64(1), client.ZCard(ctx, JobDelayedKey).Val())
	assert.Zero(t, client.LLen(ctx, JobProcessingKey).Val())

	n, err := q.PromoteDue(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n, "retry must wait for its backoff")

	n, err = q.PromoteDue(ctx, time.Now().Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(1), client.LLen(ctx, JobQueueKey).Val())
}

func TestQueue_UnknownTypeFailsPermanently(t *testing.T) {
	client := newIsolatedRedisClient(t, isolatedJobQueueTestRedisDB)
	ctx := context.Background()
	q := NewQueueWithClient(client, 1)

	job, err := q.EnqueueJob(JobType("bogus"), nil)
	require.NoError(t, err)
	dequeued, err := q.dequeueJob(ctx)
	require.NoError(t, err)
	q.processJob(ctx, dequeued)

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, stored.Status)
	assert.Zero(t, client.ZCard(ctx, JobDelayedKey).Val())
}

func TestQueue_RecoverStuck(t *testing.T) {
	client := newIsolatedRedisClient(t, isolatedJobQueueTestRedisDB)
	ctx := context.Background()
	q := NewQueueWithClient(client, 1)

	job, err := q.EnqueueJob(JobTypeNotifyAdmin, AdminNoticePayload{Subject: "stuck"}.ToMap())
	require.NoError(t, err)
	dequeued, err := q.dequeueJob(ctx)
	require.NoError(t, err)
	started := time.Now()
	dequeued.Start(started)
	q.save(ctx, dequeued)

	n, err := q.RecoverStuck(ctx, started.Add(time.Minute), 10*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = q.RecoverStuck(ctx, started.Add(11*time.Minute), 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, client.LLen(ctx, JobProcessingKey).Val())
	assert.Equal(t, []string{job.ID}, client.LRange(ctx, JobQueueKey, 0, -1).Val())

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, stored.Status)
}

func waitFor(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}
