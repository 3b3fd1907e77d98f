package middleware

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/storylinez/storylinez-go/pkg/response"
)

// RateLimiter counts requests per client address in fixed Redis windows.
type RateLimiter struct {
	redis redis.Cmdable
	log   *slog.Logger
}

func NewRateLimiter(rdb redis.Cmdable, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimiter{redis: rdb, log: logger}
}

// Limit creates a rate limiting middleware
func (rl *RateLimiter) Limit(keyPrefix string, maxRequests int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if maxRequests <= 0 {
			return c.Next()
		}

		key := fmt.Sprintf("ratelimit:%s:%s", keyPrefix, c.IP())
		ctx := c.UserContext()

		count, err := rl.redis.Incr(ctx, key).Result()
		if err != nil {
			// Redis being down must not take the API with it.
			rl.log.Warn("rate limiter unavailable", "error", err)
			return c.Next()
		}

		if count == 1 {
			if err := rl.redis.Expire(ctx, key, window).Err(); err != nil {
				// A counter without a TTL would block this address for good.
				rl.log.Warn("rate limiter could not set window", "error", err)
				rl.redis.Del(ctx, key)
				return c.Next()
			}
		}

		if count > int64(maxRequests) {
			ttl, err := rl.redis.TTL(ctx, key).Result()
			if err == nil && ttl < 0 {
				// -1: the key lost its expiry; start a fresh window.
				rl.redis.Expire(ctx, key, window)
				ttl = window
			}
			c.Set("Retry-After", fmt.Sprintf("%d", int(ttl.Seconds())))
			return response.RateLimited(c)
		}

		c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", maxRequests))
		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", maxRequests-int(count)))

		return c.Next()
	}
}

// EnqueueLimit limits how many runs one client may queue per hour.
func (rl *RateLimiter) EnqueueLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("enqueue", maxPerHour, time.Hour)
}
