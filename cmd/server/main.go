package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/talentvote/internal/adapter/gateway"
	"github.com/pscheid92/talentvote/internal/adapter/httpserver"
	"github.com/pscheid92/talentvote/internal/adapter/memory"
	"github.com/pscheid92/talentvote/internal/adapter/metrics"
	"github.com/pscheid92/talentvote/internal/adapter/postgres"
	"github.com/pscheid92/talentvote/internal/adapter/redis"
	"github.com/pscheid92/talentvote/internal/adapter/sqlite"
	"github.com/pscheid92/talentvote/internal/adapter/websocket"
	"github.com/pscheid92/talentvote/internal/app"
	"github.com/pscheid92/talentvote/internal/domain"
	"github.com/pscheid92/talentvote/internal/platform/config"
	"github.com/pscheid92/talentvote/internal/platform/logging"
	"github.com/pscheid92/talentvote/internal/platform/retry"
	"github.com/pscheid92/talentvote/internal/platform/version"
)

const (
	connectTimeout   = 30 * time.Second
	shutdownTimeout  = 10 * time.Second
	evictionInterval = time.Minute
)

// storeBackend is the selected key-value store plus its readiness check and cleanup.
type storeBackend struct {
	store domain.KeyValueStore
	ping  func(ctx context.Context) error
	close func()
}

type pinger interface {
	Ping(ctx context.Context) error
}

type observers struct {
	http   *metrics.HTTPMetrics
	voting *metrics.VotingMetrics
	feed   *metrics.FeedMetrics
	infra  *metrics.InfraMetrics
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func connectPolicy(what string) retry.Policy {
	p := retry.ConnectPolicy
	p.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Backend connection failed, retrying", "backend", what, "attempt", attempt, "backoff", backoff, "error", err)
	}
	return p
}

func setupStore(ctx context.Context, cfg *config.Config, clock clockwork.Clock, infra *metrics.InfraMetrics) (storeBackend, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	switch cfg.StoreBackend {
	case config.BackendMemory:
		store := memory.NewStore()
		return storeBackend{store: store, ping: store.Ping, close: func() {}}, nil

	case config.BackendRedis:
		hooks := []goredis.Hook{redis.NewMetricsHook(infra), redis.NewCircuitBreakerHook(clock, infra)}
		client, err := retry.Do(ctx, connectPolicy("redis"), retry.Transient, func(ctx context.Context) (*goredis.Client, error) {
			return redis.NewClient(ctx, cfg.RedisURL, hooks...)
		})
		if err != nil {
			return storeBackend{}, fmt.Errorf("failed to connect to redis: %w", err)
		}
		store := redis.NewStore(client)
		return storeBackend{store: store, ping: store.Ping, close: func() { _ = client.Close() }}, nil

	case config.BackendPostgres:
		pool, err := retry.Do(ctx, connectPolicy("postgres"), retry.Transient, func(ctx context.Context) (*pgxpool.Pool, error) {
			return postgres.Connect(ctx, cfg.DatabaseURL, postgres.NewMetricsTracer(infra, clock))
		})
		if err != nil {
			return storeBackend{}, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
			pool.Close()
			return storeBackend{}, fmt.Errorf("failed to run migrations: %w", err)
		}
		store := postgres.NewStore(pool)
		return storeBackend{store: store, ping: store.Ping, close: pool.Close}, nil

	default:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return storeBackend{}, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return storeBackend{store: store, ping: store.Ping, close: func() { _ = store.Close() }}, nil
	}
}

func setupGateway(cfg *config.Config, clock clockwork.Clock, infra *metrics.InfraMetrics) (domain.Gateway, pinger) {
	if cfg.UsesDemoGateway() {
		slog.Info("Using in-process demo gateway", "latency", cfg.GatewayLatency)
		demo := gateway.NewDemo(clock, cfg.GatewayLatency)
		return demo, demo
	}

	slog.Info("Using remote gateway", "url", cfg.GatewayURL, "timeout", cfg.GatewayTimeout)
	client := gateway.NewClient(cfg.GatewayURL, cfg.GatewayTimeout, infra)
	return client, client
}

func runGracefulShutdown(srv *httpserver.Server, stopFeed func(), hub *websocket.Hub) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		stopFeed()
		hub.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "version", version.Get().String(), "env", cfg.AppEnv, "port", cfg.Port, "store", cfg.StoreBackend)

	registry := metrics.NewRegistry()
	obs := observers{
		http:   metrics.NewHTTPMetrics(registry),
		voting: metrics.NewVotingMetrics(registry),
		feed:   metrics.NewFeedMetrics(registry),
		infra:  metrics.NewInfraMetrics(registry),
	}

	backend, err := setupStore(context.Background(), cfg, clock, obs.infra)
	if err != nil {
		slog.Error("Failed to set up vote store", "error", err)
		os.Exit(1)
	}
	defer backend.close()

	gw, gwHealth := setupGateway(cfg, clock, obs.infra)

	voters := app.NewVoterRegistry(backend.store, gw, clock, obs.voting, obs.voting)
	stopEviction := voters.StartEvictionTimer(evictionInterval, cfg.VoterIdleTTL)
	defer stopEviction()

	feed := app.NewFeed(gw, clock, cfg.PollInterval, obs.feed)
	hub := websocket.NewHub(clock, feed.State, cfg.MaxWebSocketConnections, obs.feed)
	feed.Subscribe(hub.Broadcast)
	feed.Activate(context.Background())

	srv := httpserver.NewServer(cfg, httpserver.Dependencies{
		Feed:   feed,
		Voters: voters,
		Live:   hub,
		HealthChecks: []httpserver.HealthCheck{
			{Name: "store", Check: backend.ping},
			{Name: "gateway", Check: gwHealth.Ping},
		},
		HTTPMetrics:    obs.http,
		MetricsHandler: metrics.Handler(registry),
		Clock:          clock,
	})

	done := runGracefulShutdown(srv, feed.Deactivate, hub)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
