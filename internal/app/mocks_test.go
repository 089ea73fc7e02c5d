package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pscheid92/talentvote/internal/domain"
)

// --- Mock Gateway ---

type mockGateway struct {
	fetchContestantsFn func(ctx context.Context) (domain.Envelope[[]domain.Contestant], error)
	getVotingWindowFn  func(ctx context.Context) (domain.Envelope[domain.VotingWindow], error)
	submitVoteFn       func(ctx context.Context, contestantID string) (domain.Envelope[domain.VoteReceipt], error)

	fetchCalls  atomic.Int32
	windowCalls atomic.Int32
	submitCalls atomic.Int32

	mu        sync.Mutex
	submitted []string
}

func (m *mockGateway) FetchContestants(ctx context.Context) (domain.Envelope[[]domain.Contestant], error) {
	m.fetchCalls.Add(1)
	if m.fetchContestantsFn != nil {
		return m.fetchContestantsFn(ctx)
	}
	return domain.Envelope[[]domain.Contestant]{Data: testContestants(), Success: true}, nil
}

func (m *mockGateway) GetVotingWindow(ctx context.Context) (domain.Envelope[domain.VotingWindow], error) {
	m.windowCalls.Add(1)
	if m.getVotingWindowFn != nil {
		return m.getVotingWindowFn(ctx)
	}
	return domain.Envelope[domain.VotingWindow]{Data: openWindow, Success: true}, nil
}

func (m *mockGateway) SubmitVote(ctx context.Context, contestantID string) (domain.Envelope[domain.VoteReceipt], error) {
	m.submitCalls.Add(1)
	m.mu.Lock()
	m.submitted = append(m.submitted, contestantID)
	m.mu.Unlock()
	if m.submitVoteFn != nil {
		return m.submitVoteFn(ctx, contestantID)
	}
	return domain.Envelope[domain.VoteReceipt]{
		Data:    domain.VoteReceipt{Success: true},
		Success: true,
		Message: "Vote submitted successfully!",
	}, nil
}

func (m *mockGateway) submittedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.submitted))
	copy(out, m.submitted)
	return out
}

var openWindow = domain.VotingWindow{IsOpen: true, StartTime: 1_700_000_000_000, EndTime: 1_700_007_200_000}

func testContestants() []domain.Contestant {
	return []domain.Contestant{
		{ID: "1", Name: "Sarah Johnson", Talent: "Opera Singer", VoteCount: 1247, IsActive: true},
		{ID: "2", Name: "Mike Chen", Talent: "Magician", VoteCount: 892, IsActive: true},
	}
}

func rejectVote(message string) func(context.Context, string) (domain.Envelope[domain.VoteReceipt], error) {
	return func(_ context.Context, _ string) (domain.Envelope[domain.VoteReceipt], error) {
		return domain.Envelope[domain.VoteReceipt]{Success: false, Message: message}, nil
	}
}

// --- Failing KeyValueStore ---

var errStorage = errors.New("storage quota exceeded")

type failingKV struct {
	getErr    error
	setErr    error
	deleteErr error
}

func (f *failingKV) Get(context.Context, string) (string, bool, error) { return "", false, f.getErr }
func (f *failingKV) Set(context.Context, string, string) error { return f.setErr }
func (f *failingKV) Delete(context.Context, string) error { return f.deleteErr }

// --- Recording observer ---

type recordingObserver struct {
	mu            sync.Mutex
	storeFailures []string
	submits       []string
	polls         []string
}

func (r *recordingObserver) ObserveStoreFailure(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storeFailures = append(r.storeFailures, op)
}

func (r *recordingObserver) ObserveSubmit(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submits = append(r.submits, result)
}

func (r *recordingObserver) ObservePoll(result string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.polls = append(r.polls, result)
}

func (r *recordingObserver) getStoreFailures() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.storeFailures...)
}

func (r *recordingObserver) getSubmits() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.submits...)
}

func (r *recordingObserver) getPolls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.polls...)
}

func strPtr(s string) *string { return &s }
