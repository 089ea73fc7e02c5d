package domain

const (
	LabelVote         = "Vote"
	LabelSubmitting   = "Submitting..."
	LabelVoted        = "Voted ✓"
	LabelAlreadyVoted = "Already Voted"

	NoticeVotingClosed    = "Voting is currently closed"
	NoticeVotedForAnother = "You have already voted for another contestant"
)

// Card is the view model of one contestant as the presentation layer shows it.
type Card struct {
	Contestant     Contestant `json:"contestant"`
	State          VoterState `json:"state"`
	CanVote        bool       `json:"canVote"`
	ButtonLabel    string     `json:"buttonLabel"`
	ButtonDisabled bool       `json:"buttonDisabled"`
	Notices        []string   `json:"notices,omitempty"`
}

func BuildCard(c Contestant, s VoterState, windowOpen bool) Card {
	canVote := CanVote(windowOpen, s)

	label := LabelVote
	switch {
	case s.IsSubmitting:
		label = LabelSubmitting
	case s.HasVoted:
		label = LabelVoted
	case s.HasVotedForOther:
		label = LabelAlreadyVoted
	}

	var notices []string
	if !windowOpen {
		notices = append(notices, NoticeVotingClosed)
	}
	if s.HasVotedForOther {
		notices = append(notices, NoticeVotedForAnother)
	}

	return Card{
		Contestant:     c,
		State:          s,
		CanVote:        canVote,
		ButtonLabel:    label,
		ButtonDisabled: !canVote,
		Notices:        notices,
	}
}
