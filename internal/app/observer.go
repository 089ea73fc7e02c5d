package app

import "time"

// StoreObserver is told about persistence failures the VoteStore swallows.
type StoreObserver interface {
	ObserveStoreFailure(op string)
}

// VoteObserver is told about the outcome of every SubmitVote call.
type VoteObserver interface {
	ObserveSubmit(result string)
}

// FeedObserver is told about every completed feed fetch cycle.
type FeedObserver interface {
	ObservePoll(result string, duration time.Duration)
}

// Submit results reported to VoteObserver.
const (
	SubmitSuccess      = "success"
	SubmitRejected     = "rejected"
	SubmitError        = "error"
	SubmitAlreadyVoted = "already_voted"
	SubmitIgnored      = "ignored"
)

// Poll results reported to FeedObserver.
const (
	PollOK      = "ok"
	PollPartial = "partial"
	PollError   = "error"
)

type nopObserver struct{}

func (nopObserver) ObserveStoreFailure(string) {}
func (nopObserver) ObserveSubmit(string) {}
func (nopObserver) ObservePoll(string, time.Duration) {}
