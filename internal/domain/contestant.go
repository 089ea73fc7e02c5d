package domain

type Contestant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Talent    string `json:"talent"`
	ImageURL  string `json:"imageUrl"`
	VoteCount int64  `json:"voteCount"`
	IsActive  bool   `json:"isActive"`
}

// VotingWindow gates whether votes are accepted. Times are epoch milliseconds.
type VotingWindow struct {
	IsOpen    bool  `json:"isOpen"`
	StartTime int64 `json:"startTime"`
	EndTime   int64 `json:"endTime"`
}

// FindContestant returns the contestant with the given ID from a feed snapshot.
func FindContestant(contestants []Contestant, id string) (Contestant, bool) {
	for _, c := range contestants {
		if c.ID == id {
			return c, true
		}
	}
	return Contestant{}, false
}
