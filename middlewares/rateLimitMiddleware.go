package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/montron/pm_backend/utils"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window request counter kept in Redis.
type RateLimiter struct {
	Client func() *redis.Client
	Limit  int64
	Window time.Duration
}

func NewRateLimiter(client func() *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{Client: client, Limit: limit, Window: window}
}

// Middleware counts requests per company, or per client IP before auth.
// Requests pass unchecked while Redis is not connected.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		client := rl.Client()
		if client == nil {
			c.Next()
			return
		}
		key := "ratelimit:ip:" + c.ClientIP()
		if companyId, ok := utils.GetCompanyIdFromContext(c.Request.Context()); ok && companyId != "" {
			key = "ratelimit:company:" + companyId
		}

		ctx := c.Request.Context()
		count, err := client.Incr(ctx, key).Result()
		if err != nil {
			_ = c.Error(err)
			c.Next()
			return
		}
		if count == 1 {
			client.Expire(ctx, key, rl.Window)
		}
		if count > rl.Limit {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.Window.Seconds())),
			})
			return
		}
		c.Next()
	}
}
