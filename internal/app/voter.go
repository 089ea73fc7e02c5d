package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/talentvote/internal/domain"
)

// ErrorClearDelay is how long a voter error stays visible before it is cleared.
const ErrorClearDelay = 4 * time.Second

const (
	MsgAlreadyVoted = "You have already voted for a contestant. You can only vote once."
	MsgSubmitFailed = "Failed to submit vote"
	MsgUnexpected   = "An unexpected error occurred"
)

// Voter is the voting state controller of one contestant for one voter profile.
// The GlobalVoteRecord in the store is the only source of truth for the single-vote rule;
// Voter keeps no global state of its own.
type Voter struct {
	store    *VoteStore
	gateway  domain.Gateway
	clock    clockwork.Clock
	observer VoteObserver

	mu       sync.Mutex
	state    domain.VoterState
	errTimer clockwork.Timer
	errSeq   uint64
}

func NewVoter(contestantID string, store *VoteStore, gateway domain.Gateway, clock clockwork.Clock, observer VoteObserver) *Voter {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Voter{
		store:    store,
		gateway:  gateway,
		clock:    clock,
		observer: observer,
		state:    domain.VoterState{ContestantID: contestantID},
	}
}

// Activate loads the voted/voted-for-other flags from the global record. It is safe to call
// repeatedly and does nothing while a submission is in flight.
func (v *Voter) Activate(ctx context.Context) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state.IsSubmitting {
		return
	}
	v.loadLocked(ctx)
}

// SetContestant re-targets the voter and re-reads the global record.
func (v *Voter) SetContestant(ctx context.Context, contestantID string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state.IsSubmitting || v.state.ContestantID == contestantID {
		return
	}
	v.state.ContestantID = contestantID
	v.loadLocked(ctx)
}

// Deactivate stops the pending error auto-clear.
func (v *Voter) Deactivate() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.errSeq++
	if v.errTimer != nil {
		v.errTimer.Stop()
		v.errTimer = nil
	}
}

func (v *Voter) State() domain.VoterState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// SubmitVote casts the vote for this contestant. Calls made while a vote is already recorded
// or in flight are ignored, so the gateway is invoked at most once per successful vote.
func (v *Voter) SubmitVote(ctx context.Context) domain.VoterState {
	v.mu.Lock()
	if v.state.HasVoted || v.state.IsSubmitting {
		state := v.state
		v.mu.Unlock()
		v.observer.ObserveSubmit(SubmitIgnored)
		return state
	}

	if record, ok := v.store.GlobalRecord(ctx); ok && record.HasVoted {
		v.setErrorLocked(MsgAlreadyVoted)
		state := v.state
		v.mu.Unlock()
		v.observer.ObserveSubmit(SubmitAlreadyVoted)
		return state
	}

	v.state.IsSubmitting = true
	v.clearErrorLocked()
	contestantID := v.state.ContestantID
	v.mu.Unlock()

	result := v.submit(ctx, contestantID)
	v.observer.ObserveSubmit(result)
	return v.State()
}

func (v *Voter) submit(ctx context.Context, contestantID string) string {
	defer v.finishSubmit()

	resp, err := v.gateway.SubmitVote(ctx, contestantID)

	v.mu.Lock()
	defer v.mu.Unlock()

	if err != nil {
		slog.WarnContext(ctx, "Vote submission failed", "contestant_id", contestantID, "error", err)
		v.setErrorLocked(messageOr(err.Error(), MsgUnexpected))
		return SubmitError
	}
	if !resp.Success {
		slog.InfoContext(ctx, "Vote rejected by gateway", "contestant_id", contestantID, "message", resp.Message)
		v.setErrorLocked(messageOr(resp.Message, MsgSubmitFailed))
		return SubmitRejected
	}

	v.state.HasVoted = true
	// The gateway accepted the vote; persist the lock even if the caller has gone away.
	v.store.SetGlobalRecord(context.WithoutCancel(ctx), &contestantID, true)
	slog.InfoContext(ctx, "Vote submitted", "contestant_id", contestantID)
	return SubmitSuccess
}

func (v *Voter) finishSubmit() {
	v.mu.Lock()
	v.state.IsSubmitting = false
	v.mu.Unlock()
}

// ResetVote clears the single-vote lock for the whole profile.
func (v *Voter) ResetVote(ctx context.Context) domain.VoterState {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.state.HasVoted = false
	v.clearErrorLocked()
	v.store.SetGlobalRecord(ctx, nil, false)
	return v.state
}

func (v *Voter) loadLocked(ctx context.Context) {
	record, ok := v.store.GlobalRecord(ctx)
	switch {
	case !ok || !record.HasVoted:
		v.state.HasVoted = false
		v.state.HasVotedForOther = false
	case record.VotedFor(v.state.ContestantID):
		v.state.HasVoted = true
		v.state.HasVotedForOther = false
	default:
		v.state.HasVoted = false
		v.state.HasVotedForOther = true
	}
}

// setErrorLocked shows msg and (re)starts the auto-clear delay. A timer belonging to an older
// error never clears a newer one.
func (v *Voter) setErrorLocked(msg string) {
	v.state.Error = msg
	v.errSeq++
	seq := v.errSeq

	if v.errTimer != nil {
		v.errTimer.Stop()
	}
	v.errTimer = v.clock.AfterFunc(ErrorClearDelay, func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		if v.errSeq == seq {
			v.state.Error = ""
			v.errTimer = nil
		}
	})
}

func (v *Voter) clearErrorLocked() {
	v.state.Error = ""
	v.errSeq++
	if v.errTimer != nil {
		v.errTimer.Stop()
		v.errTimer = nil
	}
}

func messageOr(msg, fallback string) string {
	if msg == "" {
		return fallback
	}
	return msg
}
