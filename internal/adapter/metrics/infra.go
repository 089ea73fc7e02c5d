package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// InfraMetrics covers Redis commands, Postgres queries and circuit breakers.
type InfraMetrics struct {
	RedisOpsTotal         *prometheus.CounterVec
	RedisOpDuration       *prometheus.HistogramVec
	RedisConnectionErrors prometheus.Counter
	DBQueryDuration       *prometheus.HistogramVec
	DBErrorsTotal         *prometheus.CounterVec
	BreakerStateChanges   *prometheus.CounterVec
	BreakerState          *prometheus.GaugeVec
}

func NewInfraMetrics(reg prometheus.Registerer) *InfraMetrics {
	m := &InfraMetrics{
		RedisOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "operations_total",
			Help:      "Total Redis operations by operation and status.",
		}, []string{"operation", "status"}),
		RedisOpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "operation_duration_seconds",
			Help:      "Redis operation duration in seconds.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),
		RedisConnectionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "connection_errors_total",
			Help:      "Total Redis connection errors.",
		}),
		DBQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Postgres query duration in seconds, by leading SQL keyword.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"query"}),
		DBErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "errors_total",
			Help:      "Total failed Postgres queries, by leading SQL keyword.",
		}, []string{"query"}),
		BreakerStateChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state_changes_total",
			Help:      "Circuit breaker state transitions by component and new state.",
		}, []string{"component", "state"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Current circuit breaker state (0=closed, 1=half-open, 2=open).",
		}, []string{"component"}),
	}

	reg.MustRegister(
		m.RedisOpsTotal, m.RedisOpDuration, m.RedisConnectionErrors,
		m.DBQueryDuration, m.DBErrorsTotal,
		m.BreakerStateChanges, m.BreakerState,
	)
	return m
}

func (m *InfraMetrics) ObserveRedisCommand(operation, status string, duration time.Duration) {
	m.RedisOpsTotal.WithLabelValues(operation, status).Inc()
	m.RedisOpDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *InfraMetrics) ObserveRedisDialError() {
	m.RedisConnectionErrors.Inc()
}

func (m *InfraMetrics) ObserveDBQuery(query string, duration time.Duration, failed bool) {
	m.DBQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
	if failed {
		m.DBErrorsTotal.WithLabelValues(query).Inc()
	}
}

func (m *InfraMetrics) ObserveBreakerState(component, _, to string) {
	m.BreakerStateChanges.WithLabelValues(component, to).Inc()
	m.BreakerState.WithLabelValues(component).Set(stateToFloat(to))
}

func stateToFloat(state string) float64 {
	switch state {
	case "closed":
		return 0
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return -1
	}
}
