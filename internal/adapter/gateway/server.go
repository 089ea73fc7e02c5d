package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/pscheid92/talentvote/internal/domain"
	"github.com/pscheid92/talentvote/internal/platform/correlation"
	apperrors "github.com/pscheid92/talentvote/internal/platform/errors"
)

// Server exposes a domain.Gateway over HTTP with the routes Client expects. Envelope failures
// are returned with status 200 like successes; only a gateway error becomes a 502.
type Server struct {
	echo    *echo.Echo
	gateway domain.Gateway
}

func NewServer(gateway domain.Gateway) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, gateway: gateway}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, _ := correlation.Adopt(c.Request().Context(), c.Request().Header.Get(correlation.Header))
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})

	s.echo.GET(pathContestants, s.handleContestants)
	s.echo.GET(pathVotingWindow, s.handleVotingWindow)
	s.echo.POST(pathVotes, s.handleSubmitVote)
	s.echo.GET("/health/live", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(addr string) error {
	slog.Info("Starting gateway server", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start gateway server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown gateway server: %w", err)
	}
	return nil
}

func (s *Server) handleContestants(c echo.Context) error {
	env, err := s.gateway.FetchContestants(c.Request().Context())
	if err != nil {
		return s.fail(c, "fetch contestants", err)
	}
	return c.JSON(http.StatusOK, env)
}

func (s *Server) handleVotingWindow(c echo.Context) error {
	env, err := s.gateway.GetVotingWindow(c.Request().Context())
	if err != nil {
		return s.fail(c, "get voting window", err)
	}
	return c.JSON(http.StatusOK, env)
}

func (s *Server) handleSubmitVote(c echo.Context) error {
	var req voteRequest
	if err := c.Bind(&req); err != nil || req.ContestantID == "" {
		return c.JSON(http.StatusBadRequest, apperrors.ValidationError("contestantId is required").ToResponse())
	}

	env, err := s.gateway.SubmitVote(c.Request().Context(), req.ContestantID)
	if err != nil {
		return s.fail(c, "submit vote", err)
	}
	return c.JSON(http.StatusOK, env)
}

func (s *Server) fail(c echo.Context, op string, err error) error {
	slog.ErrorContext(c.Request().Context(), "Gateway operation failed", "op", op, "error", err)
	structured := apperrors.ExternalError(op+" failed", err)
	return c.JSON(structured.HTTPStatus(), structured.ToResponse())
}
