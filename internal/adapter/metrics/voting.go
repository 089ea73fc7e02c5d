package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// VotingMetrics counts vote submissions and swallowed vote store failures.
// It satisfies app.VoteObserver and app.StoreObserver.
type VotingMetrics struct {
	Submissions   *prometheus.CounterVec
	StoreFailures *prometheus.CounterVec
}

func NewVotingMetrics(reg prometheus.Registerer) *VotingMetrics {
	m := &VotingMetrics{
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vote_submissions_total",
			Help:      "Total number of vote submissions, by result.",
		}, []string{"result"}),
		StoreFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_failures_total",
			Help:      "Total number of vote store operations that failed and were ignored, by operation.",
		}, []string{"op"}),
	}

	reg.MustRegister(m.Submissions, m.StoreFailures)
	return m
}

func (m *VotingMetrics) ObserveSubmit(result string) {
	m.Submissions.WithLabelValues(result).Inc()
}

func (m *VotingMetrics) ObserveStoreFailure(op string) {
	m.StoreFailures.WithLabelValues(op).Inc()
}

// FeedMetrics tracks gateway polling and live feed subscribers.
// It satisfies app.FeedObserver.
type FeedMetrics struct {
	Polls             *prometheus.CounterVec
	PollDuration      prometheus.Histogram
	ActiveConnections prometheus.Gauge
	MessagesPublished prometheus.Counter
}

func NewFeedMetrics(reg prometheus.Registerer) *FeedMetrics {
	m := &FeedMetrics{
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "polls_total",
			Help:      "Total number of feed fetch cycles, by result.",
		}, []string{"result"}),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "poll_duration_seconds",
			Help:      "Duration of feed fetch cycles in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 0.75, 1, 2.5, 5, 10},
		}),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of active live feed WebSocket connections.",
		}),
		MessagesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "messages_published_total",
			Help:      "Total number of feed updates written to WebSocket clients.",
		}),
	}

	reg.MustRegister(m.Polls, m.PollDuration, m.ActiveConnections, m.MessagesPublished)
	return m
}

func (m *FeedMetrics) ObservePoll(result string, duration time.Duration) {
	m.Polls.WithLabelValues(result).Inc()
	m.PollDuration.Observe(duration.Seconds())
}

func (m *FeedMetrics) ClientConnected() { m.ActiveConnections.Inc() }
func (m *FeedMetrics) ClientDisconnected() { m.ActiveConnections.Dec() }
func (m *FeedMetrics) MessagePublished() { m.MessagesPublished.Inc() }
