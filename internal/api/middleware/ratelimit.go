package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	redisdb "github.com/acim-association/members-dashboard/internal/infrastructure/db/redis"
)

// TokenBucket takes one token for a principal.
type TokenBucket interface {
	Take(ctx context.Context, principal string) (redisdb.Decision, error)
}

// RateLimit limits requests per client IP. Redis errors fail open.
func RateLimit(bucket TokenBucket, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal := "ip:" + c.RealIP()
			d, err := bucket.Take(c.Request().Context(), principal)
			if err != nil {
				log.Warn().Err(err).Str("principal", principal).Msg("rate limiter unavailable, allowing request")
				return next(c)
			}
			if !d.Allowed {
				if d.RetryAfter > 0 {
					c.Response().Header().Set("Retry-After", fmt.Sprintf("%d", int64(math.Ceil(d.RetryAfter.Seconds()))))
				}
				return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
			}
			c.Response().Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%.0f", math.Floor(d.Remaining)))
			return next(c)
		}
	}
}
