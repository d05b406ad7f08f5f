package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// LoginWindow is the fixed window login attempts are counted in.
const LoginWindow = time.Minute

// Limiter counts attempts per key within a fixed window.
type Limiter interface {
	Hit(ctx context.Context, key string) (int64, error)
}

type redisLimiter struct {
	cache  *redis.Client
	window time.Duration
}

// NewRedisLimiter counts with INCR and expires the key after the window.
func NewRedisLimiter(cache *redis.Client, window time.Duration) Limiter {
	return &redisLimiter{cache: cache, window: window}
}

func (l *redisLimiter) Hit(ctx context.Context, key string) (int64, error) {
	cnt, err := l.cache.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if cnt == 1 {
		l.cache.Expire(ctx, key, l.window)
	}
	return cnt, nil
}

type memoryWindow struct {
	count int64
	reset time.Time
}

type memoryLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	buckets map[string]memoryWindow
	now     func() time.Time
}

// NewMemoryLimiter is the single-process fallback when Redis is absent.
func NewMemoryLimiter(window time.Duration) Limiter {
	return &memoryLimiter{window: window, buckets: make(map[string]memoryWindow), now: time.Now}
}

func (l *memoryLimiter) Hit(_ context.Context, key string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	b := l.buckets[key]
	if !now.Before(b.reset) {
		b = memoryWindow{reset: now.Add(l.window)}
	}
	b.count++
	l.buckets[key] = b
	return b.count, nil
}

// LoginRateLimit limits login attempts per email, or per IP when the body
// carries none. Limiter errors fail open.
func LoginRateLimit(limiter Limiter, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	return func(c *fiber.Ctx) error {
		var req struct {
			Email string `json:"email"`
		}
		_ = c.BodyParser(&req)
		who := strings.ToLower(strings.TrimSpace(req.Email))
		if who == "" {
			who = c.IP()
		}
		cnt, err := limiter.Hit(c.UserContext(), "agrofake:rl:login:"+who)
		if err != nil {
			return c.Next()
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many login attempts, try again later")
		}
		return c.Next()
	}
}
