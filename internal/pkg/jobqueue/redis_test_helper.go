package jobqueue

import (
	"context"
	"net"
	"slices"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hangarlinks/hangarlinks/internal/pkg/env"
)

// Queue tests own this database and flush it before and after each test.
const isolatedJobQueueTestRedisDB = 14

// testRedisAddrs lists the configured cache first, then the compose and local defaults.
func testRedisAddrs() []string {
	port := env.GetEnv("CACHE_PORT", "6379")
	var addrs []string
	for _, host := range []string{env.GetEnv("CACHE_HOST", ""), "cache", "localhost"} {
		if host != "" {
			addrs = append(addrs, net.JoinHostPort(host, port))
		}
	}
	return slices.Compact(addrs)
}

// newIsolatedRedisClient returns a client on an empty database, or skips the
// test when no Redis answers.
func newIsolatedRedisClient(t *testing.T, db int) *redis.Client {
	t.Helper()

	var lastErr error
	for _, addr := range testRedisAddrs() {
		client := redis.NewClient(&redis.Options{
			Addr:        addr,
			Password:    env.GetEnv("CACHE_PASSWORD", ""),
			DB:          db,
			DialTimeout: 500 * time.Millisecond,
		})
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		lastErr = client.Ping(ctx).Err()
		cancel()
		if lastErr != nil {
			_ = client.Close()
			continue
		}

		if err := client.FlushDB(context.Background()).Err(); err != nil {
			_ = client.Close()
			t.Fatalf("flush redis db %d: %v", db, err)
		}
		t.Cleanup(func() {
			_ = client.FlushDB(context.Background()).Err()
			_ = client.Close()
		})
		return client
	}

	t.Skipf("Skipping Redis-dependent test: no reachable Redis (%v)", lastErr)
	return nil
}
