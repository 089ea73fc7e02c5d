package httpserver

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	apperrors "github.com/pscheid92/talentvote/internal/platform/errors"
)

// Limiter names, used as the metric label for rejected requests.
const (
	limiterVote  = "vote"
	limiterCards = "cards"
)

const rateLimiterExpiry = 5 * time.Minute

// newRateLimiter throttles the routes it wraps per client IP. Every limiter keeps its own
// buckets, so card reads never eat into a visitor's vote budget. onDeny may be nil.
func newRateLimiter(name string, ratePerSecond float64, burst int, onDeny func(limiter string)) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(ratePerSecond),
		Burst:     burst,
		ExpiresIn: rateLimiterExpiry,
	})

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		Store: store,
		DenyHandler: func(c echo.Context, ip string, _ error) error {
			slog.DebugContext(c.Request().Context(), "Request throttled", "limiter", name, "ip", ip, "route", c.Path())
			if onDeny != nil {
				onDeny(name)
			}
			return apperrors.RateLimitedError("rate limit exceeded").WithContext("limiter", name)
		},
	})
}

func (s *Server) observeRateLimited(limiter string) {
	if s.httpMetrics != nil {
		s.httpMetrics.ObserveRateLimited(limiter)
	}
}
