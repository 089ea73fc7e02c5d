package httpserver

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	apperrors "github.com/pscheid92/talentvote/internal/platform/errors"
)

const (
	profileCookieName = "talentvote-profile"
	sessionKeyProfile = "profile_id"
	contextKeyProfile = "profileID"
)

// requireProfile resolves the visitor's profile id from the profile cookie and issues a new
// one when the cookie is missing, tampered with or holds something that is not a UUID.
func (s *Server) requireProfile(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		// Get returns a fresh session alongside a decode error for a tampered cookie.
		session, err := s.sessionStore.Get(c.Request(), profileCookieName)
		if err != nil {
			slog.DebugContext(c.Request().Context(), "Discarding unreadable profile cookie", "error", err)
		}

		raw, _ := session.Values[sessionKeyProfile].(string)
		profileID, err := uuid.Parse(raw)
		if err != nil {
			profileID = uuid.New()
			session.Values[sessionKeyProfile] = profileID.String()
			if err := session.Save(c.Request(), c.Response()); err != nil {
				return apperrors.InternalError("failed to save profile cookie", err)
			}
			slog.DebugContext(c.Request().Context(), "Issued voter profile", "profile_id", profileID)
		}

		c.Set(contextKeyProfile, profileID.String())
		return next(c)
	}
}

func profileFrom(c echo.Context) string {
	profile, _ := c.Get(contextKeyProfile).(string)
	return profile
}
