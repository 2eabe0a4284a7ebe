package httptransport

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dfeirstein/the-skin-lab/internal/domain/ratelimit/store"
	"github.com/dfeirstein/the-skin-lab/internal/platform/logging"
	"github.com/dfeirstein/the-skin-lab/internal/platform/observability"
)

// MsgRateLimited is the 429 error message.
const MsgRateLimited = "Rate limit exceeded"

// RateLimit admits requests per client IP. A store error lets the request
// through; the limiter must not take the endpoint down with it.
func RateLimit(limiter store.Store, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		decision, err := limiter.Allow(ctx, c.ClientIP())
		if err != nil {
			logger.WarnContext(ctx, "[RATELIMIT] store unavailable, admitting request", "error", err.Error())
			c.Next()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		if decision.Allowed {
			c.Next()
			return
		}

		retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		observability.RecordMetric(ctx, observability.MetricRateLimited, 1, map[string]string{"path": c.FullPath()})
		logger.WarnContext(ctx, "[RATELIMIT] rejected", "client_ip", c.ClientIP(), "retry_after", retryAfter)

		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, RateLimitResponse{
			Error:      MsgRateLimited,
			RetryAfter: retryAfter,
		})
	}
}
