package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVotingMetrics(t *testing.T) {
	m := NewVotingMetrics(prometheus.NewRegistry())

	m.ObserveSubmit("success")
	m.ObserveSubmit("success")
	m.ObserveSubmit("rejected")
	m.ObserveStoreFailure("write_global")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Submissions.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Submissions.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreFailures.WithLabelValues("write_global")))
}

func TestFeedMetrics(t *testing.T) {
	m := NewFeedMetrics(prometheus.NewRegistry())

	m.ObservePoll("ok", 200*time.Millisecond)
	m.ObservePoll("partial", time.Second)
	m.ClientConnected()
	m.ClientConnected()
	m.ClientDisconnected()
	m.MessagePublished()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Polls.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Polls.WithLabelValues("partial")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.PollDuration))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveConnections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesPublished))
}

func TestInfraMetrics_Breaker(t *testing.T) {
	m := NewInfraMetrics(prometheus.NewRegistry())

	m.ObserveBreakerState("gateway", "closed", "open")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("gateway")))

	m.ObserveBreakerState("gateway", "open", "half-open")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("gateway")))

	m.ObserveBreakerState("gateway", "half-open", "closed")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("gateway")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BreakerStateChanges.WithLabelValues("gateway", "open")))
}

func TestInfraMetrics_Redis(t *testing.T) {
	m := NewInfraMetrics(prometheus.NewRegistry())

	m.ObserveRedisCommand("get", "success", 2*time.Millisecond)
	m.ObserveRedisCommand("get", "error", time.Millisecond)
	m.ObserveRedisDialError()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RedisOpsTotal.WithLabelValues("get", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RedisOpsTotal.WithLabelValues("get", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RedisConnectionErrors))
}

func TestInfraMetrics_DB(t *testing.T) {
	m := NewInfraMetrics(prometheus.NewRegistry())

	m.ObserveDBQuery("SELECT", 3*time.Millisecond, false)
	m.ObserveDBQuery("INSERT", time.Millisecond, true)

	assert.Equal(t, 2, testutil.CollectAndCount(m.DBQueryDuration))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DBErrorsTotal.WithLabelValues("INSERT")))
}

func TestHTTPMetrics_Middleware(t *testing.T) {
	m := NewHTTPMetrics(prometheus.NewRegistry())
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/cards", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for _, path := range []string{"/api/cards", "/api/cards", "/health/live"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/api/cards", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestsTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.InFlightGauge))
}

func TestHTTPMetrics_Rejections(t *testing.T) {
	m := NewHTTPMetrics(prometheus.NewRegistry())

	m.ObserveRateLimited("vote")
	m.ObserveRateLimited("vote")
	m.ObserveRateLimited("cards")
	m.ObserveOriginRejected()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RateLimited.WithLabelValues("vote")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited.WithLabelValues("cards")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OriginRejected))
}

func TestHandler_ServesRegistry(t *testing.T) {
	reg := NewRegistry()
	m := NewVotingMetrics(reg)
	m.ObserveSubmit("success")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `talentvote_vote_submissions_total{result="success"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
