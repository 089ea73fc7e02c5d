package httpserver

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	apperrors "github.com/pscheid92/talentvote/internal/platform/errors"
)

// handleFeedWebSocket upgrades to a WebSocket that receives the feed state after every poll.
// The read loop only detects disconnects; clients send nothing.
func (s *Server) handleFeedWebSocket(c echo.Context) error {
	ip := c.RealIP()
	if !s.wsLimiter.acquire(ip) {
		return apperrors.RateLimitedError("too many live feed connections")
	}
	defer s.wsLimiter.release(ip)

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		slog.DebugContext(c.Request().Context(), "WebSocket upgrade failed", "error", err)
		return nil
	}

	if err := s.live.Register(conn); err != nil {
		slog.WarnContext(c.Request().Context(), "Live feed client rejected", "error", err)
		return nil
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.live.Unregister(conn)
	return nil
}
