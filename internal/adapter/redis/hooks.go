package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// CommandObserver receives the outcome of every Redis command.
type CommandObserver interface {
	ObserveRedisCommand(operation, status string, duration time.Duration)
	ObserveRedisDialError()
}

// BreakerObserver receives circuit breaker state transitions.
type BreakerObserver interface {
	ObserveBreakerState(component, from, to string)
}

// MetricsHook reports command outcomes to a CommandObserver.
type MetricsHook struct {
	observer CommandObserver
}

var _ goredis.Hook = (*MetricsHook)(nil)

func NewMetricsHook(observer CommandObserver) *MetricsHook {
	return &MetricsHook{observer: observer}
}

func (h *MetricsHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.observer.ObserveRedisDialError()
		}
		return conn, err
	}
}

func (h *MetricsHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		h.observer.ObserveRedisCommand(cmd.Name(), commandStatus(err), time.Since(start))
		return err
	}
}

func (h *MetricsHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		h.observer.ObserveRedisCommand("pipeline", commandStatus(err), time.Since(start))
		return err
	}
}

func commandStatus(err error) string {
	if err != nil && !errors.Is(err, goredis.Nil) {
		return "error"
	}
	return "success"
}

const (
	readCacheTTL = 5 * time.Minute
	// Vote record keys are per visitor, so the read cache is bounded.
	maxCachedKeys = 10_000
)

type cachedValue struct {
	data      string
	timestamp time.Time
}

// CircuitBreakerHook stops sending commands to Redis after sustained failures. While the
// circuit is open, GETs are answered from values seen in the last readCacheTTL so that vote
// records stay readable; every other command fails fast.
type CircuitBreakerHook struct {
	cb    *gobreaker.CircuitBreaker
	clock clockwork.Clock

	mu        sync.Mutex
	cache     map[string]cachedValue
	nextSweep time.Time
}

var _ goredis.Hook = (*CircuitBreakerHook)(nil)

// NewCircuitBreakerHook trips at a 60% failure rate over at least 5 requests and probes
// again after 30s. observer may be nil.
func NewCircuitBreakerHook(clock clockwork.Clock, observer BreakerObserver) *CircuitBreakerHook {
	return newCircuitBreakerHook(clock, observer, 30*time.Second)
}

func newCircuitBreakerHook(clock clockwork.Clock, observer BreakerObserver, timeout time.Duration) *CircuitBreakerHook {
	settings := gobreaker.Settings{
		Name:        "redis",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, goredis.Nil)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
			if observer != nil {
				observer.ObserveBreakerState(name, from.String(), to.String())
			}
		},
	}

	return &CircuitBreakerHook{
		cb:        gobreaker.NewCircuitBreaker(settings),
		clock:     clock,
		cache:     make(map[string]cachedValue),
		nextSweep: clock.Now().Add(readCacheTTL),
	}
}

func (h *CircuitBreakerHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := h.cb.Execute(func() (interface{}, error) {
			return next(ctx, network, addr)
		})
		if err != nil {
			return nil, fmt.Errorf("circuit breaker dial failed: %w", err)
		}
		return conn.(net.Conn), nil
	}
}

func (h *CircuitBreakerHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		_, err := h.cb.Execute(func() (interface{}, error) {
			return nil, next(ctx, cmd)
		})
		if isBreakerRejection(err) {
			return h.fallback(cmd, err)
		}
		if err == nil {
			h.remember(cmd)
		}
		return err
	}
}

func (h *CircuitBreakerHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		_, err := h.cb.Execute(func() (interface{}, error) {
			return nil, next(ctx, cmds)
		})
		if isBreakerRejection(err) {
			return fmt.Errorf("redis circuit breaker open: %w", err)
		}
		return err
	}
}

func (h *CircuitBreakerHook) State() gobreaker.State {
	return h.cb.State()
}

func (h *CircuitBreakerHook) Counts() gobreaker.Counts {
	return h.cb.Counts()
}

func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func (h *CircuitBreakerHook) fallback(cmd goredis.Cmder, cause error) error {
	if c, ok := cmd.(*goredis.StringCmd); ok && cmd.Name() == "get" {
		if value, ok := h.lookup(cacheKey(cmd)); ok {
			slog.Debug("Circuit breaker open, serving from cache", "key", cacheKey(cmd))
			c.SetVal(value)
			return nil
		}
		return fmt.Errorf("redis circuit breaker open and no cached value: %w", cause)
	}
	return fmt.Errorf("redis circuit breaker open: %w", cause)
}

func (h *CircuitBreakerHook) remember(cmd goredis.Cmder) {
	key := cacheKey(cmd)
	if key == "" {
		return
	}

	switch cmd.Name() {
	case "get":
		c, ok := cmd.(*goredis.StringCmd)
		if !ok {
			return
		}
		h.store(key, c.Val())
	case "set", "del":
		h.mu.Lock()
		delete(h.cache, key)
		h.mu.Unlock()
	}
}

// store caches value under key. Expired entries are swept once per readCacheTTL, or early when
// the cache is full; a full cache of live entries keeps only the keys it already holds.
func (h *CircuitBreakerHook) store(key, value string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.clock.Now()
	if _, exists := h.cache[key]; !exists && (len(h.cache) >= maxCachedKeys || !now.Before(h.nextSweep)) {
		h.sweepLocked(now)
		if len(h.cache) >= maxCachedKeys {
			return
		}
	}
	h.cache[key] = cachedValue{data: value, timestamp: now}
}

func (h *CircuitBreakerHook) sweepLocked(now time.Time) {
	for key, cached := range h.cache {
		if now.Sub(cached.timestamp) > readCacheTTL {
			delete(h.cache, key)
		}
	}
	h.nextSweep = now.Add(readCacheTTL)
}

func (h *CircuitBreakerHook) lookup(key string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cached, ok := h.cache[key]
	if !ok {
		return "", false
	}
	if h.clock.Since(cached.timestamp) > readCacheTTL {
		delete(h.cache, key)
		return "", false
	}
	return cached.data, true
}

func (h *CircuitBreakerHook) cachedKeys() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.cache)
}

func cacheKey(cmd goredis.Cmder) string {
	args := cmd.Args()
	if len(args) < 2 {
		return ""
	}
	return fmt.Sprintf("%v", args[1])
}
