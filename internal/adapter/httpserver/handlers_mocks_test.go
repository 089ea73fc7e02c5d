package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/talentvote/internal/adapter/memory"
	"github.com/pscheid92/talentvote/internal/app"
	"github.com/pscheid92/talentvote/internal/domain"
	"github.com/pscheid92/talentvote/internal/platform/config"
)

// --- Mock implementations ---

type mockGateway struct {
	mu          sync.Mutex
	contestants []domain.Contestant
	windowOpen  bool
	submitFn    func(ctx context.Context, contestantID string) (domain.Envelope[domain.VoteReceipt], error)
	submitted   []string
}

func (m *mockGateway) FetchContestants(context.Context) (domain.Envelope[[]domain.Contestant], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.Envelope[[]domain.Contestant]{Data: m.contestants, Success: true}, nil
}

func (m *mockGateway) GetVotingWindow(context.Context) (domain.Envelope[domain.VotingWindow], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.Envelope[domain.VotingWindow]{Data: domain.VotingWindow{IsOpen: m.windowOpen}, Success: true}, nil
}

func (m *mockGateway) SubmitVote(ctx context.Context, contestantID string) (domain.Envelope[domain.VoteReceipt], error) {
	m.mu.Lock()
	m.submitted = append(m.submitted, contestantID)
	fn := m.submitFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, contestantID)
	}
	return domain.Envelope[domain.VoteReceipt]{Data: domain.VoteReceipt{Success: true}, Success: true}, nil
}

func (m *mockGateway) submittedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.submitted...)
}

type mockLiveFeed struct {
	registerFn func(conn *gorillaws.Conn) error
	mu         sync.Mutex
	registered int
}

func (m *mockLiveFeed) Register(conn *gorillaws.Conn) error {
	if m.registerFn != nil {
		return m.registerFn(conn)
	}
	m.mu.Lock()
	m.registered++
	m.mu.Unlock()
	return nil
}

func (m *mockLiveFeed) Unregister(conn *gorillaws.Conn) {
	_ = conn.Close()
}

// --- Test helpers ---

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:        "development",
		AppURL:        "http://localhost:8080",
		SessionSecret: "test-secret-key-32-bytes-long!!!",
		SessionMaxAge: time.Hour,
		VoteRateLimit: 100,
		VoteRateBurst: 100,
		ReadRateLimit: 100,
		ReadRateBurst: 100,

		MaxWebSocketConnectionsPerIP: 10,
	}
}

type testEnv struct {
	srv     *Server
	gateway *mockGateway
	feed    *app.Feed
	voters  *app.VoterRegistry
}

func newTestEnv(t *testing.T, opts ...func(*config.Config, *Dependencies)) *testEnv {
	t.Helper()

	gw := &mockGateway{
		contestants: []domain.Contestant{
			{ID: "1", Name: "Sarah Johnson", Talent: "Opera Singer", VoteCount: 1247, IsActive: true},
			{ID: "2", Name: "Mike Chen", Talent: "Stand-up Comedian", VoteCount: 892, IsActive: true},
		},
		windowOpen: true,
	}
	clock := clockwork.NewFakeClock()
	feed := app.NewFeed(gw, clock, 0, nil)
	feed.Tick(context.Background())
	voters := app.NewVoterRegistry(memory.NewStore(), gw, clock, nil, nil)

	cfg := testConfig()
	deps := Dependencies{Feed: feed, Voters: voters, Live: &mockLiveFeed{}, Clock: clock}
	for _, opt := range opts {
		opt(cfg, &deps)
	}

	return &testEnv{srv: NewServer(cfg, deps), gateway: gw, feed: feed, voters: voters}
}

// do sends a request through the full middleware stack.
func (e *testEnv) do(t *testing.T, method, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "1.2.3.4:1234"
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func wsURL(t *testing.T, server *httptest.Server, path string) string {
	t.Helper()
	require.True(t, strings.HasPrefix(server.URL, "http"))
	return "ws" + strings.TrimPrefix(server.URL, "http") + path
}

func (e *testEnv) profileCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == profileCookieName {
			return cookie
		}
	}
	t.Fatalf("no %s cookie in response", profileCookieName)
	return nil
}
