package middleware

import (
	"log"
	"math"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"golang.org/x/time/rate"
)

// GlobalAPIRateLimiter caps requests per IP across the whole API
func GlobalAPIRateLimiter(max int, expiration time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: expiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "global:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("🚫 [RATE-LIMIT] Global limit reached for IP: %s", c.IP())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many requests. Please slow down.",
				"retry_after": int(expiration.Seconds()),
			})
		},
	})
}

// ChatRateLimiter limits chat messages per requester with a token bucket per user or session
type ChatRateLimiter struct {
	limiters sync.Map // requester key -> *requesterLimiter
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	now      func() time.Time
}

type requesterLimiter struct {
	limiter  *rate.Limiter
	mu       sync.Mutex
	lastSeen time.Time
}

// NewChatRateLimiter allows perMinute messages per requester with a burst of the same size
func NewChatRateLimiter(perMinute int) *ChatRateLimiter {
	if perMinute <= 0 {
		perMinute = 30
	}
	return &ChatRateLimiter{
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   perMinute,
		idleTTL: 10 * time.Minute,
		now:     time.Now,
	}
}

// Allow reports whether the requester may send another message now
func (l *ChatRateLimiter) Allow(key string) bool {
	entry, _ := l.limiters.LoadOrStore(key, &requesterLimiter{limiter: rate.NewLimiter(l.limit, l.burst)})
	rl := entry.(*requesterLimiter)

	rl.mu.Lock()
	rl.lastSeen = l.now()
	rl.mu.Unlock()

	return rl.limiter.AllowN(l.now(), 1)
}

// Cleanup drops limiters idle for longer than the idle TTL
func (l *ChatRateLimiter) Cleanup() int {
	cutoff := l.now().Add(-l.idleTTL)
	removed := 0
	l.limiters.Range(func(key, value interface{}) bool {
		rl := value.(*requesterLimiter)
		rl.mu.Lock()
		idle := rl.lastSeen.Before(cutoff)
		rl.mu.Unlock()
		if idle {
			l.limiters.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

// Middleware rejects over-limit requesters with 429. Requesters are keyed by user id, else client IP.
// Anonymous session keys are client-chosen, so they never pick the bucket.
func (l *ChatRateLimiter) Middleware() fiber.Handler {
	retryAfter := int(math.Ceil(1 / float64(l.limit)))

	return func(c *fiber.Ctx) error {
		key := "ip:" + c.IP()
		if user := CurrentUser(c); user.IsAuthenticated() {
			key = "user:" + user.ID
		}

		if !l.Allow(key) {
			log.Printf("🚫 [RATE-LIMIT] Chat limit reached for %s", key)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "You're sending messages too quickly. Please wait a moment.",
				"retry_after": retryAfter,
			})
		}
		return c.Next()
	}
}
