package middleware

import (
	"fmt"
	"net/http"

	"partsreserve/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"
)

// RateLimit throttles a route group with an in-memory store. formatted uses
// the limiter notation, e.g. "30-M" for 30 requests per minute. Requests are
// keyed by the authenticated user when known, else by client IP.
func RateLimit(formatted string, log *zap.Logger) (gin.HandlerFunc, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("invalid rate %q: %w", formatted, err)
	}

	instance := limiter.New(memory.NewStore(), rate)

	return mgin.NewMiddleware(instance,
		mgin.WithKeyGetter(func(c *gin.Context) string {
			if actor, ok := ActorFrom(c); ok {
				return "user:" + actor.UserID.String()
			}
			return "ip:" + c.ClientIP()
		}),
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, response.Error(http.StatusTooManyRequests, "too many requests"))
		}),
		mgin.WithErrorHandler(func(c *gin.Context, err error) {
			log.Error("rate limiter failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "internal server error"))
		}),
	), nil
}
