package ports

import (
	"context"
	"time"

	"github.com/everypoll/everypoll/internal/core/domain"
	"github.com/google/uuid"
)

// VoteRepository is the ledger: the authoritative store of vote records. Its
// uniqueness constraint on (poll, voter) is the final arbiter of the
// at-most-one-vote invariant; Insert returns domain.ErrAlreadyVoted when it
// is violated.
type VoteRepository interface {
	Insert(ctx context.Context, vote *domain.Vote) error
	FindByID(ctx context.Context, id int64) (*domain.Vote, error)
	FindByPollAndVoter(ctx context.Context, pollID, userID uuid.UUID) (*domain.Vote, error)
	FindByVoter(ctx context.Context, userID uuid.UUID) ([]domain.Vote, error)
	DeleteByPollAndVoter(ctx context.Context, pollID, userID uuid.UUID) error
	DeleteByPoll(ctx context.Context, pollID uuid.UUID) (int64, error)
	AnonymizeByVoter(ctx context.Context, userID uuid.UUID) (int64, error)
	CountByPoll(ctx context.Context, pollID uuid.UUID) (int64, error)
	CountByPollAndOption(ctx context.Context, pollID, optionID uuid.UUID) (int64, error)
	CountGroupedByOption(ctx context.Context, pollID uuid.UUID) (map[uuid.UUID]int64, error)
	VoteTimeBounds(ctx context.Context, pollID uuid.UUID) (first, last *time.Time, err error)
}

type CastVoteInput struct {
	PollID   uuid.UUID
	OptionID uuid.UUID
	UserID   uuid.UUID
}

type VoteService interface {
	Cast(ctx context.Context, input CastVoteInput) (*domain.Vote, error)
	Cancel(ctx context.Context, pollID, userID uuid.UUID) error
	ChangeVote(ctx context.Context, input CastVoteInput) (*domain.Vote, error)
	HasVoted(ctx context.Context, pollID, userID uuid.UUID) (bool, error)
	VotedOption(ctx context.Context, pollID, userID uuid.UUID) (uuid.UUID, bool, error)
	GetVote(ctx context.Context, voteID int64) (*domain.Vote, error)
	VoteHistory(ctx context.Context, userID uuid.UUID) ([]domain.Vote, error)
	HandlePollDeleted(ctx context.Context, pollID uuid.UUID) error
	HandleUserDeleted(ctx context.Context, userID uuid.UUID) error
}

type AggregationService interface {
	GetTally(ctx context.Context, pollID uuid.UUID, optionIDs []uuid.UUID) (*domain.TallyResult, error)
	GetStats(ctx context.Context, pollID uuid.UUID) (*domain.VoteStats, error)
	RebuildTally(ctx context.Context, pollID uuid.UUID, optionIDs []uuid.UUID) error
	Invalidate(ctx context.Context, pollID uuid.UUID) error
	// IncrementTally/DecrementTally are best-effort cache updates used by the
	// vote coordinator; failures are absorbed and logged.
	IncrementTally(ctx context.Context, pollID, optionID uuid.UUID)
	DecrementTally(ctx context.Context, pollID, optionID uuid.UUID)
}
