package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mx-space/forms/internal/pkg/response"
)

const submitRateWindow = time.Minute

var now = time.Now

// Counter is the redis operation the rate limiter needs.
type Counter interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// SubmitRateLimit allows perMinute submissions per client IP and form token
// within a fixed one-minute window. A zero limit disables it. Redis errors
// let the request through.
func SubmitRateLimit(counter Counter, perMinute int, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if perMinute <= 0 || counter == nil {
			c.Next()
			return
		}
		ip := c.ClientIP()
		if ip == "" {
			c.Next()
			return
		}

		window := now().Unix() / int64(submitRateWindow/time.Second)
		key := fmt.Sprintf("forms:rate_limit:%s:%s:%d", c.Param("token"), ip, window)
		count, err := counter.IncrWithTTL(c.Request.Context(), key, submitRateWindow+time.Second)
		if err != nil {
			if log != nil {
				log.Warn("rate limit unavailable", zap.Error(err))
			}
			c.Next()
			return
		}

		if count > int64(perMinute) {
			c.Header("Retry-After", strconv.Itoa(int(submitRateWindow/time.Second)))
			response.TooManyRequests(c, "too many submissions, please wait a minute")
			return
		}
		c.Next()
	}
}
