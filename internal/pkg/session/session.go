package session

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/storage/redis"

	"github.com/hangarlinks/hangarlinks/internal/pkg/cache"
	"github.com/hangarlinks/hangarlinks/internal/pkg/env"
)

// Redis databases on the cache server. The cache itself uses 0.
const (
	SessionDB    = 1
	OAuthStateDB = 2
)

const CookieName = "session_id"

var errNoStore = errors.New("session store not initialized")

var sessionStore *session.Store

// RedisStorage returns Fiber storage on the cache server's database db,
// reusing the address and credentials of the shared cache client.
func RedisStorage(db int) *redis.Storage {
	cfg := redis.Config{Host: "127.0.0.1", Port: 6379, Database: db, Password: env.GetEnv("CACHE_PASSWORD", "")}
	if client := cache.GetClient(); client != nil {
		opts := client.Options()
		cfg.Username = opts.Username
		if opts.Password != "" {
			cfg.Password = opts.Password
		}
		if h, p, err := net.SplitHostPort(opts.Addr); err == nil {
			cfg.Host = h
			if port, err := strconv.Atoi(p); err == nil {
				cfg.Port = port
			}
		}
	}
	return redis.New(cfg)
}

// NewSessionStore installs the Redis-backed login session store.
func NewSessionStore() *session.Store {
	sessionStore = session.New(session.Config{
		Storage:        RedisStorage(SessionDB),
		KeyLookup:      "cookie:" + CookieName,
		CookieHTTPOnly: true,
		CookieSecure:   !env.IsDev(),
		CookieSameSite: "Lax",
		Expiration:     24 * time.Hour,
	})
	return sessionStore
}

// UseMemoryStore installs an in-memory store. Handler tests use it to run without Redis.
func UseMemoryStore() *session.Store {
	sessionStore = session.New(session.Config{KeyLookup: "cookie:" + CookieName})
	return sessionStore
}

func GetSessionStore() *session.Store {
	return sessionStore
}

func current(c *fiber.Ctx) (*session.Session, error) {
	if sessionStore == nil {
		return nil, errNoStore
	}
	return sessionStore.Get(c)
}

func SetSessionValue(c *fiber.Ctx, key, value string) error {
	sess, err := current(c)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	sess.Set(key, value)
	return sess.Save()
}

// GetSessionValue returns "" when the key is unset or the store is missing.
func GetSessionValue(c *fiber.Ctx, key string) string {
	sess, err := current(c)
	if err != nil {
		return ""
	}
	v, _ := sess.Get(key).(string)
	return v
}

// PopSessionValue returns a value and removes it from the session.
func PopSessionValue(c *fiber.Ctx, key string) string {
	sess, err := current(c)
	if err != nil {
		return ""
	}
	v, _ := sess.Get(key).(string)
	if v == "" {
		return ""
	}
	sess.Delete(key)
	_ = sess.Save()
	return v
}
