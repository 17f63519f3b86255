package domain

import (
	"time"

	"github.com/google/uuid"
)

// OptionResult is one option's slice of a tally snapshot. Percentage is
// rounded to two decimal places and is 0 when the poll has no votes.
type OptionResult struct {
	OptionID   uuid.UUID `json:"option_id"`
	VoteCount  int64     `json:"vote_count"`
	Percentage float64   `json:"percentage"`
}

// TallyResult is a point-in-time snapshot of a poll's vote counts. It is
// served from the tally cache and may lag the ledger by a few seconds.
type TallyResult struct {
	PollID      uuid.UUID      `json:"poll_id"`
	TotalVotes  int64          `json:"total_votes"`
	Options     []OptionResult `json:"options"`
	LastUpdated time.Time      `json:"last_updated"`
}

// VoteStats is an administrative view computed directly from the ledger.
// UniqueVoters equals TotalVotes because a voter holds at most one vote
// per poll.
type VoteStats struct {
	PollID        uuid.UUID           `json:"poll_id"`
	TotalVotes    int64               `json:"total_votes"`
	UniqueVoters  int64               `json:"unique_voters"`
	FirstVoteAt   *time.Time          `json:"first_vote_at"`
	LastVoteAt    *time.Time          `json:"last_vote_at"`
	VotesByOption map[uuid.UUID]int64 `json:"votes_by_option"`
}
