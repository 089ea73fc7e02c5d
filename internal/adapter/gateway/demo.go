package gateway

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/talentvote/internal/domain"
)

const (
	// DefaultLatency is the simulated round trip of every demo call.
	DefaultLatency = 500 * time.Millisecond

	MsgContestantNotFound = "Contestant not found"
	MsgVoteSubmitted      = "Vote submitted successfully!"

	maxDrift     = 50
	windowMargin = time.Hour
)

var seedContestants = []domain.Contestant{
	{ID: "1", Name: "Sarah Johnson", Talent: "Opera Singer", ImageURL: "https://images.unsplash.com/photo-1494790108755-2616b612b786?w=400&h=300&fit=crop&crop=face", VoteCount: 1247, IsActive: true},
	{ID: "2", Name: "Mike Chen", Talent: "Magician", ImageURL: "https://images.unsplash.com/photo-1507003211169-0a1dd7228f2d?w=400&h=300&fit=crop&crop=face", VoteCount: 892, IsActive: true},
	{ID: "3", Name: "Emma Rodriguez", Talent: "Dancer", ImageURL: "https://images.unsplash.com/photo-1438761681033-6461ffad8d80?w=400&h=300&fit=crop&crop=face", VoteCount: 1563, IsActive: true},
	{ID: "4", Name: "David Thompson", Talent: "Comedian", ImageURL: "https://images.unsplash.com/photo-1472099645785-5658abf4ff4e?w=400&h=300&fit=crop&crop=face", VoteCount: 734, IsActive: true},
	{ID: "5", Name: "Lisa Park", Talent: "Violinist", ImageURL: "https://images.unsplash.com/photo-1544005313-94ddf0286df2?w=400&h=300&fit=crop&crop=face", VoteCount: 1102, IsActive: true},
	{ID: "6", Name: "Alex Rivera", Talent: "Acrobat", ImageURL: "https://images.unsplash.com/photo-1500648767791-00dcc994a43e?w=400&h=300&fit=crop&crop=face", VoteCount: 945, IsActive: true},
	{ID: "7", Name: "Sophie Williams", Talent: "Pianist", ImageURL: "https://images.unsplash.com/photo-1534528741775-53994a69daeb?w=400&h=300&fit=crop&crop=face", VoteCount: 1328, IsActive: true},
	{ID: "8", Name: "Marcus Johnson", Talent: "Beatboxer", ImageURL: "https://images.unsplash.com/photo-1506794778202-cad84cf45f1d?w=400&h=300&fit=crop&crop=face", VoteCount: 678, IsActive: true},
	{ID: "9", Name: "Isabella Chen", Talent: "Painter", ImageURL: "https://images.unsplash.com/photo-1531746020798-e6953c6e8e04?w=400&h=300&fit=crop&crop=face", VoteCount: 1156, IsActive: true},
	{ID: "10", Name: "Ryan O'Connor", Talent: "Juggler", ImageURL: "https://images.unsplash.com/photo-1472099645785-5658abf4ff4e?w=400&h=300&fit=crop&crop=face", VoteCount: 823, IsActive: true},
}

// SeedContestants returns a copy of the demo line-up with its base vote counts.
func SeedContestants() []domain.Contestant {
	out := make([]domain.Contestant, len(seedContestants))
	copy(out, seedContestants)
	return out
}

// Demo is an in-process gateway with a fixed line-up. Every fetch reports each base count
// plus a random drift below 50 to imitate live voting; submitted votes are not tallied.
// The voting window is always open.
type Demo struct {
	clock   clockwork.Clock
	latency time.Duration
	drift   func() int64
}

var _ domain.Gateway = (*Demo)(nil)

func NewDemo(clock clockwork.Clock, latency time.Duration) *Demo {
	return &Demo{
		clock:   clock,
		latency: latency,
		drift:   func() int64 { return rand.Int64N(maxDrift) },
	}
}

func (d *Demo) FetchContestants(ctx context.Context) (domain.Envelope[[]domain.Contestant], error) {
	if err := d.wait(ctx); err != nil {
		return domain.Envelope[[]domain.Contestant]{}, err
	}

	contestants := SeedContestants()
	for i := range contestants {
		contestants[i].VoteCount += d.drift()
	}
	return domain.Envelope[[]domain.Contestant]{Data: contestants, Success: true}, nil
}

func (d *Demo) GetVotingWindow(ctx context.Context) (domain.Envelope[domain.VotingWindow], error) {
	if err := d.wait(ctx); err != nil {
		return domain.Envelope[domain.VotingWindow]{}, err
	}

	now := d.clock.Now()
	return domain.Envelope[domain.VotingWindow]{
		Data: domain.VotingWindow{
			IsOpen:    true,
			StartTime: now.Add(-windowMargin).UnixMilli(),
			EndTime:   now.Add(windowMargin).UnixMilli(),
		},
		Success: true,
	}, nil
}

func (d *Demo) SubmitVote(ctx context.Context, contestantID string) (domain.Envelope[domain.VoteReceipt], error) {
	if err := d.wait(ctx); err != nil {
		return domain.Envelope[domain.VoteReceipt]{}, err
	}

	if _, ok := domain.FindContestant(seedContestants, contestantID); !ok {
		return domain.Envelope[domain.VoteReceipt]{Success: false, Message: MsgContestantNotFound}, nil
	}
	return domain.Envelope[domain.VoteReceipt]{
		Data:    domain.VoteReceipt{Success: true},
		Success: true,
		Message: MsgVoteSubmitted,
	}, nil
}

func (d *Demo) Ping(context.Context) error {
	return nil
}

func (d *Demo) wait(ctx context.Context) error {
	if d.latency <= 0 {
		return ctx.Err()
	}

	timer := d.clock.NewTimer(d.latency)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}
