package middleware

import (
	"fmt"
	"net/http"
	"time"

	"ChatRelay/limiter"

	"github.com/labstack/echo/v4"
)

type RateLimitConfig struct {
	Limit   int
	Window  time.Duration
	KeyFunc func(c echo.Context) string
}

func NewRateLimitMiddleware(manager *limiter.Manager, config RateLimitConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var key string
			if config.KeyFunc != nil {
				key = config.KeyFunc(c)
			}
			if key == "" {
				key = c.RealIP()
			}
			redisKey := fmt.Sprintf("limiter:%s", key)
			allowed, err := manager.Allow(c.Request().Context(), redisKey, config.Limit, config.Window)
			if err != nil {
				// Fail open: a Redis outage must not take the API down with it
				c.Logger().Errorf("Rate limit redis error: %v", err)
				return next(c)
			}

			if !allowed {
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error": "too many requests",
				})
			}
			return next(c)
		}
	}
}
