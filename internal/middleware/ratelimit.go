package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"healthtracker-server/internal/utils"
)

// RateLimiter is a fixed-window counter per client IP and route, kept in
// Redis so every instance shares it.
type RateLimiter struct {
	Redis  redis.Cmdable
	Prefix string
	Limit  int
	Window time.Duration
	Logger *zap.Logger
}

func NewRateLimiter(r redis.Cmdable, prefix string, limit int, window time.Duration, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{Redis: r, Prefix: prefix, Limit: limit, Window: window, Logger: logger}
}

// Middleware counts the request and answers 429 once the window's budget
// is spent. Redis errors let the request through.
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if r == nil || r.Redis == nil || r.Limit <= 0 {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		key := fmt.Sprintf("%s:%s:%s", r.Prefix, c.FullPath(), c.ClientIP())

		count, err := r.Redis.Incr(ctx, key).Result()
		if err != nil {
			r.Logger.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}
		if count == 1 {
			if err := r.Redis.Expire(ctx, key, r.Window).Err(); err != nil {
				r.Logger.Warn("rate limiter expire failed", zap.String("key", key), zap.Error(err))
			}
		}

		remaining := int64(r.Limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(r.Limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(r.Limit) {
			c.Header("Retry-After", strconv.Itoa(int(r.Window.Seconds())))
			utils.TooManyRequests(c, "Too many requests. Please try again later.")
			c.Abort()
			return
		}
		c.Next()
	}
}
