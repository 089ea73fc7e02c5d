package domain

import "errors"

var (
	ErrContestantNotFound = errors.New("contestant not found")
	ErrVotingClosed       = errors.New("voting is currently closed")
)
