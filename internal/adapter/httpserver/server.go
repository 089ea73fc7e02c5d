package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	gorillaws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/talentvote/internal/adapter/metrics"
	"github.com/pscheid92/talentvote/internal/adapter/websocket"
	"github.com/pscheid92/talentvote/internal/app"
	"github.com/pscheid92/talentvote/internal/domain"
	"github.com/pscheid92/talentvote/internal/platform/config"
)

type feedService interface {
	State() domain.FeedState
	Refetch(ctx context.Context) domain.FeedState
}

type voterService interface {
	Voter(ctx context.Context, profile, contestantID string) *app.Voter
	Peek(ctx context.Context, profile, contestantID string) domain.VoterState
	ResetProfile(ctx context.Context, profile string)
	ClearProfile(ctx context.Context, profile string)
}

type liveFeed interface {
	Register(conn *gorillaws.Conn) error
	Unregister(conn *gorillaws.Conn)
}

// Dependencies are the collaborators the HTTP API is wired to. HTTPMetrics and MetricsHandler
// are optional.
type Dependencies struct {
	Feed           feedService
	Voters         voterService
	Live           liveFeed
	HealthChecks   []HealthCheck
	HTTPMetrics    *metrics.HTTPMetrics
	MetricsHandler http.Handler
	Clock          clockwork.Clock
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	feed   feedService
	voters voterService
	live   liveFeed

	upgrader       gorillaws.Upgrader
	wsLimiter      *ipConnLimiter
	sessionStore   *sessions.CookieStore
	healthChecks   []HealthCheck
	httpMetrics    *metrics.HTTPMetrics
	metricsHandler http.Handler
	clock          clockwork.Clock
	startTime      time.Time
}

func NewServer(cfg *config.Config, deps Dependencies) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	var onOriginRejected func(string)
	if deps.HTTPMetrics != nil {
		onOriginRejected = func(string) { deps.HTTPMetrics.ObserveOriginRejected() }
	}
	origins := websocket.NewFeedOrigins(!cfg.IsProduction(), onOriginRejected, cfg.AppURL)

	srv := &Server{
		echo:   e,
		config: cfg,
		feed:   deps.Feed,
		voters: deps.Voters,
		live:   deps.Live,
		upgrader: gorillaws.Upgrader{
			CheckOrigin: origins.CheckOrigin,
		},
		wsLimiter:      newIPConnLimiter(cfg.MaxWebSocketConnectionsPerIP),
		sessionStore:   setupSessionStore(cfg),
		healthChecks:   deps.HealthChecks,
		httpMetrics:    deps.HTTPMetrics,
		metricsHandler: deps.MetricsHandler,
		clock:          clock,
		startTime:      clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

func setupSessionStore(cfg *config.Config) *sessions.CookieStore {
	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		// Profiles do not survive a restart without a configured secret.
		slog.Warn("SESSION_SECRET not set, using an ephemeral key")
		secret = securecookie.GenerateRandomKey(32)
	}

	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
	return store
}
