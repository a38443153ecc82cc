package repository

import (
	"context"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/hangarlinks/hangarlinks/internal/pkg/cache"
)

// QueueKeys names the Redis structures behind the job queue.
type QueueKeys struct {
	Pending    string // list
	Processing string // list
	Delayed    string // sorted set
	Stats      string // hash of status -> count
}

// QueueSnapshot is one consistent read of the job queue.
type QueueSnapshot struct {
	Pending    int64
	Processing int64
	Delayed    int64
	Counts     map[string]string
}

const scanBatch = 500

// queueRepository reads job and cache state straight from Redis.
type queueRepository struct {
	client func() *redis.Client
}

func NewQueueRepository() QueueRepository {
	return &queueRepository{client: cache.GetClient}
}

// Snapshot reads the queue lengths and the status counters in one pipeline.
func (r *queueRepository) Snapshot(keys QueueKeys) (QueueSnapshot, error) {
	ctx := context.Background()
	var (
		pending, processing, delayed *redis.IntCmd
		counts                       *redis.MapStringStringCmd
	)
	_, err := r.client().Pipelined(ctx, func(p redis.Pipeliner) error {
		pending = p.LLen(ctx, keys.Pending)
		processing = p.LLen(ctx, keys.Processing)
		delayed = p.ZCard(ctx, keys.Delayed)
		counts = p.HGetAll(ctx, keys.Stats)
		return nil
	})
	if err != nil {
		return QueueSnapshot{}, err
	}
	return QueueSnapshot{
		Pending:    pending.Val(),
		Processing: processing.Val(),
		Delayed:    delayed.Val(),
		Counts:     counts.Val(),
	}, nil
}

// FindKeysByPatterns SCANs every pattern and returns the sorted union.
func (r *queueRepository) FindKeysByPatterns(patterns []string) ([]string, error) {
	ctx := context.Background()
	seen := make(map[string]struct{})
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		iter := r.client().Scan(ctx, 0, pattern, scanBatch).Iterator()
		for iter.Next(ctx) {
			seen[iter.Val()] = struct{}{}
		}
		if err := iter.Err(); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// DeleteKeys unlinks keys in batches and returns how many existed.
func (r *queueRepository) DeleteKeys(keys []string) (int64, error) {
	ctx := context.Background()
	var deleted int64
	for start := 0; start < len(keys); start += scanBatch {
		end := min(start+scanBatch, len(keys))
		n, err := r.client().Unlink(ctx, keys[start:end]...).Result()
		deleted += n
		if err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}
