// Package cache owns the shared Redis client. Sessions, the job queue,
// counters and the price intel cache all go through it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/hangarlinks/hangarlinks/internal/pkg/env"
)

var (
	mu     sync.RWMutex
	client *redis.Client
)

// Options reads CACHE_HOST, CACHE_PORT and CACHE_PASSWORD.
func Options() *redis.Options {
	return &redis.Options{
		Addr:     net.JoinHostPort(env.GetEnv("CACHE_HOST", "localhost"), env.GetEnv("CACHE_PORT", "6379")),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
	}
}

// SetupCache connects to Redis. An unreachable server is logged, not fatal:
// the client reconnects on its own once Redis is up.
func SetupCache() {
	c := redis.NewClient(Options())
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		log.Warnf("[Cache] %s not reachable yet: %v", c.Options().Addr, err)
	} else {
		log.Infof("[Cache] connected to %s", c.Options().Addr)
	}
	SetClient(c)
}

func GetClient() *redis.Client {
	mu.RLock()
	c := client
	mu.RUnlock()
	if c == nil {
		SetupCache()
		mu.RLock()
		c = client
		mu.RUnlock()
	}
	return c
}

// SetClient swaps the client, e.g. for an isolated test database.
func SetClient(c *redis.Client) {
	mu.Lock()
	client = c
	mu.Unlock()
}

func Set(key string, value interface{}, ttl time.Duration) error {
	return GetClient().Set(context.Background(), key, value, ttl).Err()
}

func Get(key string) (string, error) {
	return GetClient().Get(context.Background(), key).Result()
}

func SetJSON(key string, v interface{}, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return Set(key, b, ttl)
}

// GetJSON decodes the cached value into v. A miss returns redis.Nil.
func GetJSON(key string, v interface{}) error {
	b, err := GetClient().Get(context.Background(), key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// IsMiss reports whether err means the key does not exist.
func IsMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}

// DeletePattern unlinks every key matching the glob pattern.
func DeletePattern(pattern string) error {
	ctx := context.Background()
	c := GetClient()
	var batch []string
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := c.Unlink(ctx, batch...).Err()
		batch = batch[:0]
		return err
	}

	iter := c.Scan(ctx, 0, pattern, 200).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 200 {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return flush()
}
