package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendSQLite, cfg.StoreBackend)
	assert.Equal(t, "votes.db", cfg.SQLitePath)
	assert.Equal(t, 10*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 30*time.Minute, cfg.VoterIdleTTL)
	assert.Equal(t, 500*time.Millisecond, cfg.GatewayLatency)
	assert.InDelta(t, 2.0, cfg.VoteRateLimit, 0.001)
	assert.Equal(t, 5, cfg.VoteRateBurst)
	assert.InDelta(t, 10.0, cfg.ReadRateLimit, 0.001)
	assert.Equal(t, 20, cfg.ReadRateBurst)
	assert.Equal(t, 1000, cfg.MaxWebSocketConnections)
	assert.Equal(t, 10, cfg.MaxWebSocketConnectionsPerIP)
	assert.True(t, cfg.UsesDemoGateway())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("GATEWAY_URL", "http://gateway:8081")
	t.Setenv("POLL_INTERVAL", "2s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendRedis, cfg.StoreBackend)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.False(t, cfg.UsesDemoGateway())
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"unknown backend", map[string]string{"STORE_BACKEND": "mongo"}, `STORE_BACKEND must be one of [sqlite memory redis postgres], got "mongo"`},
		{"redis without url", map[string]string{"STORE_BACKEND": "redis"}, "REDIS_URL is required"},
		{"postgres without url", map[string]string{"STORE_BACKEND": "postgres"}, "DATABASE_URL is required"},
		{"production without secret", map[string]string{"APP_ENV": "production"}, "SESSION_SECRET is required"},
		{"short secret", map[string]string{"SESSION_SECRET": "short"}, "SESSION_SECRET must be at least 32 characters"},
		{"negative poll interval", map[string]string{"POLL_INTERVAL": "-1s"}, "POLL_INTERVAL must not be negative"},
		{"zero gateway timeout", map[string]string{"GATEWAY_TIMEOUT": "0s"}, "GATEWAY_TIMEOUT must be positive"},
		{"zero rate burst", map[string]string{"VOTE_RATE_BURST": "0"}, "VOTE_RATE_LIMIT and VOTE_RATE_BURST must be positive"},
		{"zero read rate", map[string]string{"READ_RATE_LIMIT": "0"}, "READ_RATE_LIMIT and READ_RATE_BURST must be positive"},
		{"zero per-ip connections", map[string]string{"MAX_WEBSOCKET_CONNECTIONS_PER_IP": "0"}, "MAX_WEBSOCKET_CONNECTIONS and MAX_WEBSOCKET_CONNECTIONS_PER_IP must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestLoad_ProductionWithSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("SESSION_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestLoad_ZeroPollIntervalDisablesPolling(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "0s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Zero(t, cfg.PollInterval)
}
