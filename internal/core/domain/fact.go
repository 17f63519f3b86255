package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	FactVoteCreated   = "VOTE_CREATED"
	FactVoteCancelled = "VOTE_CANCELLED"
	FactPollDeleted   = "POLL_DELETED"
	FactUserCreated   = "USER_CREATED"
	FactUserDeleted   = "USER_DELETED"
)

const (
	SourceVoteService     = "vote-service"
	SourcePollService     = "poll-service"
	SourceIdentityService = "identity-service"
)

// Fact is the immutable envelope published to the event log. Subject fields
// are filled according to the kind; consumers key idempotency on EventID.
type Fact struct {
	EventID   string    `json:"eventId"`
	EventType string    `json:"eventType"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`

	VoteID    int64     `json:"voteId,omitempty"`
	PollID    uuid.UUID `json:"pollId"`
	OptionID  uuid.UUID `json:"optionId"`
	UserID    uuid.UUID `json:"userId"`
	Username  string    `json:"username,omitempty"`
	DeletedBy string    `json:"deletedBy,omitempty"`
}

// PartitionKey keeps facts about the same subject on the same log partition:
// poll-scoped facts key on the poll, user facts on the user.
func (f Fact) PartitionKey() string {
	switch f.EventType {
	case FactUserCreated, FactUserDeleted:
		return f.UserID.String()
	default:
		return f.PollID.String()
	}
}

func newFact(eventType, source string) Fact {
	return Fact{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Source:    source,
	}
}

func NewVoteCreatedFact(voteID int64, pollID, optionID, userID uuid.UUID) Fact {
	f := newFact(FactVoteCreated, SourceVoteService)
	f.VoteID = voteID
	f.PollID = pollID
	f.OptionID = optionID
	f.UserID = userID
	return f
}

func NewVoteCancelledFact(voteID int64, pollID, optionID, userID uuid.UUID) Fact {
	f := newFact(FactVoteCancelled, SourceVoteService)
	f.VoteID = voteID
	f.PollID = pollID
	f.OptionID = optionID
	f.UserID = userID
	return f
}

func NewPollDeletedFact(pollID uuid.UUID, deletedBy string) Fact {
	f := newFact(FactPollDeleted, SourcePollService)
	f.PollID = pollID
	f.DeletedBy = deletedBy
	return f
}

func NewUserCreatedFact(userID uuid.UUID, username string) Fact {
	f := newFact(FactUserCreated, SourceIdentityService)
	f.UserID = userID
	f.Username = username
	return f
}

func NewUserDeletedFact(userID uuid.UUID, username string) Fact {
	f := newFact(FactUserDeleted, SourceIdentityService)
	f.UserID = userID
	f.Username = username
	return f
}
