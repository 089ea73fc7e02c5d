package domain

// ContestantVoteRecord is the per-contestant vote flag. It is kept for compatibility but
// GlobalVoteRecord is what enforces the single vote.
type ContestantVoteRecord struct {
	ContestantID string `json:"contestantId"`
	HasVoted     bool   `json:"hasVoted"`
	Timestamp    int64  `json:"timestamp"`
}

// GlobalVoteRecord records whether this voter profile has voted at all, and for whom.
// ContestantID is nil after a reset.
type GlobalVoteRecord struct {
	HasVoted     bool    `json:"hasVoted"`
	ContestantID *string `json:"contestantId"`
	Timestamp    int64   `json:"timestamp"`
}

// VotedFor reports whether the record locks the vote to contestantID.
func (r GlobalVoteRecord) VotedFor(contestantID string) bool {
	return r.HasVoted && r.ContestantID != nil && *r.ContestantID == contestantID
}

// VoterState is the externally visible state of a single contestant's voting controller.
// An empty Error means no error is shown.
type VoterState struct {
	ContestantID     string `json:"contestantId"`
	HasVoted         bool   `json:"hasVoted"`
	HasVotedForOther bool   `json:"hasVotedForOther"`
	IsSubmitting     bool   `json:"isSubmitting"`
	Error            string `json:"error,omitempty"`
}

// CanVote is the eligibility rule exposed to the presentation layer.
func CanVote(windowOpen bool, s VoterState) bool {
	return windowOpen && !s.HasVoted && !s.HasVotedForOther && !s.IsSubmitting
}

// FeedState is the contestant feed as last fetched from the gateway.
type FeedState struct {
	Contestants  []Contestant  `json:"contestants"`
	VotingWindow *VotingWindow `json:"votingWindow"`
	IsLoading    bool          `json:"isLoading"`
	Error        string        `json:"error,omitempty"`
}

// WindowOpen reports whether the last fetched voting window is open. An unknown window is closed.
func (s FeedState) WindowOpen() bool {
	return s.VotingWindow != nil && s.VotingWindow.IsOpen
}
