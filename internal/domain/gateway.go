package domain

import "context"

// Envelope is the uniform response wrapper of every gateway operation. Success is a
// business-level flag and is independent of transport errors.
type Envelope[T any] struct {
	Data    T      `json:"data"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// VoteReceipt is the payload of a vote submission envelope.
type VoteReceipt struct {
	Success bool `json:"success"`
}

// Gateway is the remote data source for contestants, the voting window and vote submission.
type Gateway interface {
	FetchContestants(ctx context.Context) (Envelope[[]Contestant], error)
	GetVotingWindow(ctx context.Context) (Envelope[VotingWindow], error)
	SubmitVote(ctx context.Context, contestantID string) (Envelope[VoteReceipt], error)
}
