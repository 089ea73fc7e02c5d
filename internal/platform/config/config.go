package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Store backends selectable through STORE_BACKEND.
const (
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

const minSessionSecretLength = 32

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	AppURL    string `env:"APP_URL" default:"http://localhost:8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	SessionSecret string        `env:"SESSION_SECRET"`
	SessionMaxAge time.Duration `env:"SESSION_MAX_AGE" default:"8760h"` // 1 year

	StoreBackend string `env:"STORE_BACKEND" default:"sqlite"`
	SQLitePath   string `env:"SQLITE_PATH" default:"votes.db"`
	RedisURL     string `env:"REDIS_URL"`
	DatabaseURL  string `env:"DATABASE_URL"`

	GatewayURL     string        `env:"GATEWAY_URL"`
	GatewayTimeout time.Duration `env:"GATEWAY_TIMEOUT" default:"10s"`
	GatewayPort    string        `env:"GATEWAY_PORT" default:"8081"`
	GatewayLatency time.Duration `env:"GATEWAY_LATENCY" default:"500ms"`

	PollInterval  time.Duration `env:"POLL_INTERVAL" default:"5s"`
	VoterIdleTTL  time.Duration `env:"VOTER_IDLE_TTL" default:"30m"`
	VoteRateLimit float64       `env:"VOTE_RATE_LIMIT" default:"2"`
	VoteRateBurst int           `env:"VOTE_RATE_BURST" default:"5"`
	ReadRateLimit float64       `env:"READ_RATE_LIMIT" default:"10"`
	ReadRateBurst int           `env:"READ_RATE_BURST" default:"20"`

	MaxWebSocketConnections      int `env:"MAX_WEBSOCKET_CONNECTIONS" default:"1000"`
	MaxWebSocketConnectionsPerIP int `env:"MAX_WEBSOCKET_CONNECTIONS_PER_IP" default:"10"`
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// UsesDemoGateway reports whether the server runs against the in-process demo gateway.
func (c *Config) UsesDemoGateway() bool {
	return c.GatewayURL == ""
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	backends := []string{BackendSQLite, BackendMemory, BackendRedis, BackendPostgres}
	if !slices.Contains(backends, cfg.StoreBackend) {
		return fmt.Errorf("STORE_BACKEND must be one of %v, got %q", backends, cfg.StoreBackend)
	}

	required := map[string]string{}
	switch cfg.StoreBackend {
	case BackendSQLite:
		required["SQLITE_PATH"] = cfg.SQLitePath
	case BackendRedis:
		required["REDIS_URL"] = cfg.RedisURL
	case BackendPostgres:
		required["DATABASE_URL"] = cfg.DatabaseURL
	}
	if cfg.IsProduction() {
		required["SESSION_SECRET"] = cfg.SessionSecret
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if cfg.SessionSecret != "" && len(cfg.SessionSecret) < minSessionSecretLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters", minSessionSecretLength)
	}
	if cfg.PollInterval < 0 {
		return errors.New("POLL_INTERVAL must not be negative")
	}
	if cfg.GatewayTimeout <= 0 {
		return errors.New("GATEWAY_TIMEOUT must be positive")
	}
	if cfg.VoterIdleTTL <= 0 {
		return errors.New("VOTER_IDLE_TTL must be positive")
	}
	if cfg.VoteRateLimit <= 0 || cfg.VoteRateBurst <= 0 {
		return errors.New("VOTE_RATE_LIMIT and VOTE_RATE_BURST must be positive")
	}
	if cfg.ReadRateLimit <= 0 || cfg.ReadRateBurst <= 0 {
		return errors.New("READ_RATE_LIMIT and READ_RATE_BURST must be positive")
	}
	if cfg.MaxWebSocketConnections <= 0 || cfg.MaxWebSocketConnectionsPerIP <= 0 {
		return errors.New("MAX_WEBSOCKET_CONNECTIONS and MAX_WEBSOCKET_CONNECTIONS_PER_IP must be positive")
	}

	return nil
}
