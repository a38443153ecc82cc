package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	"github.com/hangarlinks/hangarlinks/internal/pkg/usercontext"
)

// ClientLimiter hands out one token bucket per client key.
type ClientLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	limiters map[string]*clientEntry
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewClientLimiter allows every client r events per second with the given burst.
func NewClientLimiter(r rate.Limit, burst int) *ClientLimiter {
	return &ClientLimiter{
		limit:    r,
		burst:    burst,
		idleTTL:  10 * time.Minute,
		limiters: make(map[string]*clientEntry),
	}
}

// Allow consumes a token for key.
func (l *ClientLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	entry, ok := l.limiters[key]
	if !ok {
		entry = &clientEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now

	if len(l.limiters) > 1024 {
		for k, e := range l.limiters {
			if now.Sub(e.lastSeen) > l.idleTTL {
				delete(l.limiters, k)
			}
		}
	}

	return entry.limiter.AllowN(now, 1)
}

// RateLimit rejects clients over their budget with 429. Logged-in users are
// keyed by user id, everyone else by IP.
func RateLimit(l *ClientLimiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := "ip:" + ClientIP(c)
		if id := usercontext.GetUserID(c); id != 0 {
			key = "user:" + strconv.FormatUint(uint64(id), 10)
		}
		if !l.Allow(key) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate_limited",
				"reply": "You're sending messages too quickly. Please wait a moment.",
			})
		}
		return c.Next()
	}
}
