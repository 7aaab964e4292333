package session

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/SubsPortal/internal/pkg/cache"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/env"
)

var sessionStore *session.Store

// Redis databases used for fiber storages. DB 0 belongs to the cache.
const (
	SessionDatabase = 1
	CSRFDatabase    = 2
)

// NewRedisStorage returns a fiber storage on the given Redis database,
// reusing the cache connection settings.
func NewRedisStorage(database int) *redis.Storage {
	cacheClient := cache.GetClient()
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	if cacheClient != nil {
		addr := cacheClient.Options().Addr
		if h, p, err := net.SplitHostPort(addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := cacheClient.Options().Password; p != "" {
			password = p
		}
	}

	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: database,
		Reset:    false,
	})
}

// NewSessionStore creates the cookie session store on Redis.
func NewSessionStore() *session.Store {
	return SetSessionStore(session.New(session.Config{
		Storage:        NewRedisStorage(SessionDatabase),
		CookieHTTPOnly: true,
		CookieSecure:   !env.IsDev(),
		CookieSameSite: fiber.CookieSameSiteLaxMode,
		Expiration:     env.GetEnvDuration("SESSION_TTL", time.Hour),
		KeyLookup:      "cookie:session_id",
	}))
}

// SetSessionStore installs store as the shared session store. Tests use it
// with an in-memory store.
func SetSessionStore(store *session.Store) *session.Store {
	sessionStore = store
	return sessionStore
}

func GetSessionStore() *session.Store {
	return sessionStore
}

// SetSessionValue stores a key-value pair in the user's individual session
func SetSessionValue(c *fiber.Ctx, key string, value interface{}) error {
	if sessionStore == nil {
		return fmt.Errorf("session store not initialized")
	}

	sess, err := sessionStore.Get(c)
	if err != nil {
		return fmt.Errorf("failed to get session: %v", err)
	}

	sess.Set(key, value)
	return sess.Save()
}

// GetSessionValue retrieves a string value by key from the user's session
func GetSessionValue(c *fiber.Ctx, key string) string {
	if sessionStore == nil {
		return ""
	}

	sess, err := sessionStore.Get(c)
	if err != nil {
		return ""
	}

	if strValue, ok := sess.Get(key).(string); ok {
		return strValue
	}
	return ""
}
