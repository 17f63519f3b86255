package ports

import (
	"context"

	"github.com/everypoll/everypoll/internal/core/domain"
	"github.com/google/uuid"
)

type PollRepository interface {
	Save(ctx context.Context, poll *domain.Poll) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Poll, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Poll, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// AdjustOptionCount applies a delta to the denormalized per-option
	// counter; decrements clamp at zero.
	AdjustOptionCount(ctx context.Context, pollID, optionID uuid.UUID, delta int64) error
	AnonymizeByAuthor(ctx context.Context, userID uuid.UUID) (int64, error)
}

// UserReplicaRepository maintains the poll service's local copy of users,
// written only by the poll-side fact consumer.
type UserReplicaRepository interface {
	Upsert(ctx context.Context, user *domain.UserReplica) error
	Anonymize(ctx context.Context, userID uuid.UUID) error
}

type CreatePollInput struct {
	Title       string
	Description string
	Options     []string
	CreatedBy   uuid.UUID
}

type PollService interface {
	Create(ctx context.Context, input CreatePollInput) (*domain.Poll, error)
	GetPoll(ctx context.Context, id string) (*domain.Poll, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Poll, error)
	Delete(ctx context.Context, pollID, requestedBy uuid.UUID) error
	HandleVoteCreated(ctx context.Context, pollID, optionID uuid.UUID) error
	HandleVoteCancelled(ctx context.Context, pollID, optionID uuid.UUID) error
	HandleUserCreated(ctx context.Context, userID uuid.UUID, username string) error
	HandleUserDeleted(ctx context.Context, userID uuid.UUID) error
}
