package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/pscheid92/talentvote/internal/domain"
	"github.com/pscheid92/talentvote/internal/platform/correlation"
)

const (
	pathContestants  = "/api/contestants"
	pathVotingWindow = "/api/voting-window"
	pathVotes        = "/api/votes"

	maxResponseBytes = 1 << 20
)

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("gateway unavailable: circuit breaker is open")

// BreakerObserver receives circuit breaker state transitions.
type BreakerObserver interface {
	ObserveBreakerState(component, from, to string)
}

type voteRequest struct {
	ContestantID string `json:"contestantId"`
}

// Client talks to a remote gateway over HTTP/JSON. An envelope is decoded from any response
// that carries one, whatever the status code; only transport failures and bodies without an
// envelope become errors, and only those count against the circuit breaker.
type Client struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
}

var _ domain.Gateway = (*Client)(nil)

// NewClient trips the breaker after 5 consecutive transport failures and probes again after
// 30s. observer may be nil.
func NewClient(baseURL string, timeout time.Duration, observer BreakerObserver) *Client {
	return newClient(baseURL, &http.Client{Timeout: timeout}, observer, 30*time.Second)
}

func newClient(baseURL string, httpClient *http.Client, observer BreakerObserver, openTimeout time.Duration) *Client {
	settings := gobreaker.Settings{
		Name:        "gateway",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
			if observer != nil {
				observer.ObserveBreakerState(name, from.String(), to.String())
			}
		},
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		cb:      gobreaker.NewCircuitBreaker(settings),
	}
}

func (c *Client) FetchContestants(ctx context.Context) (domain.Envelope[[]domain.Contestant], error) {
	var env domain.Envelope[[]domain.Contestant]
	err := c.do(ctx, http.MethodGet, pathContestants, nil, &env)
	return env, err
}

func (c *Client) GetVotingWindow(ctx context.Context) (domain.Envelope[domain.VotingWindow], error) {
	var env domain.Envelope[domain.VotingWindow]
	err := c.do(ctx, http.MethodGet, pathVotingWindow, nil, &env)
	return env, err
}

func (c *Client) SubmitVote(ctx context.Context, contestantID string) (domain.Envelope[domain.VoteReceipt], error) {
	var env domain.Envelope[domain.VoteReceipt]
	err := c.do(ctx, http.MethodPost, pathVotes, voteRequest{ContestantID: contestantID}, &env)
	return env, err
}

// Ping reports whether the breaker currently lets requests through.
func (c *Client) Ping(context.Context) error {
	if c.cb.State() == gobreaker.StateOpen {
		return ErrUnavailable
	}
	return nil
}

func (c *Client) State() gobreaker.State {
	return c.cb.State()
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, path, body, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrUnavailable
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id, ok := correlation.ID(ctx); ok {
		req.Header.Set(correlation.Header, id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s %s: failed to read response: %w", method, path, err)
	}

	if !hasEnvelope(raw) {
		return fmt.Errorf("%s %s: unexpected response status %d", method, path, resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
	}
	return nil
}

// hasEnvelope reports whether raw is a JSON object carrying the success flag.
func hasEnvelope(raw []byte) bool {
	var head struct {
		Success *bool `json:"success"`
	}
	return json.Unmarshal(raw, &head) == nil && head.Success != nil
}
