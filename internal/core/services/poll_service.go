package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/everypoll/everypoll/internal/core/domain"
	"github.com/everypoll/everypoll/internal/core/ports"
)

type pollService struct {
	repo      ports.PollRepository
	replicas  ports.UserReplicaRepository
	publisher ports.FactPublisher
	log       zerolog.Logger
}

func NewPollService(
	repo ports.PollRepository,
	replicas ports.UserReplicaRepository,
	publisher ports.FactPublisher,
	log zerolog.Logger,
) ports.PollService {
	return &pollService{
		repo:      repo,
		replicas:  replicas,
		publisher: publisher,
		log:       log.With().Str("component", "poll_service").Logger(),
	}
}

func (s *pollService) Create(ctx context.Context, input ports.CreatePollInput) (*domain.Poll, error) {
	if input.Title == "" {
		return nil, errors.New("title is required")
	}
	if len(input.Options) < 2 {
		return nil, errors.New("at least two options are required")
	}

	pollID := uuid.New()
	poll := &domain.Poll{
		ID:          pollID,
		Title:       input.Title,
		Description: input.Description,
		CreatedBy:   input.CreatedBy,
	}

	for _, optText := range input.Options {
		if optText == "" {
			continue
		}
		poll.Options = append(poll.Options, domain.PollOption{
			ID:     uuid.New(),
			PollID: pollID,
			Text:   optText,
		})
	}

	if len(poll.Options) < 2 {
		return nil, errors.New("at least two valid options are required")
	}

	if err := s.repo.Save(ctx, poll); err != nil {
		return nil, err
	}

	return poll, nil
}

func (s *pollService) GetPoll(ctx context.Context, id string) (*domain.Poll, error) {
	pollID, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.ErrInvalidPollID
	}

	return s.repo.GetByID(ctx, pollID)
}

func (s *pollService) List(ctx context.Context, limit, offset int) ([]*domain.Poll, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *pollService) Delete(ctx context.Context, pollID, requestedBy uuid.UUID) error {
	poll, err := s.repo.GetByID(ctx, pollID)
	if err != nil {
		return err
	}
	if poll.CreatedBy != requestedBy {
		return domain.ErrForbidden
	}

	if err := s.repo.Delete(ctx, pollID); err != nil {
		return fmt.Errorf("failed to delete poll: %w", err)
	}

	fact := domain.NewPollDeletedFact(pollID, requestedBy.String())
	if err := s.publisher.Publish(ctx, fact); err != nil {
		s.log.Error().Err(err).
			Stringer("poll_id", pollID).
			Msg("failed to publish poll-deleted fact, vote cleanup will need a replay")
	}

	s.log.Info().Stringer("poll_id", pollID).Msg("poll deleted")
	return nil
}

// HandleVoteCreated/HandleVoteCancelled maintain the denormalized per-option
// counter for the poll-serving read path. Redelivered facts are filtered by
// the consumer's dedup, so plain increments are safe here.
func (s *pollService) HandleVoteCreated(ctx context.Context, pollID, optionID uuid.UUID) error {
	return s.repo.AdjustOptionCount(ctx, pollID, optionID, 1)
}

func (s *pollService) HandleVoteCancelled(ctx context.Context, pollID, optionID uuid.UUID) error {
	return s.repo.AdjustOptionCount(ctx, pollID, optionID, -1)
}

func (s *pollService) HandleUserCreated(ctx context.Context, userID uuid.UUID, username string) error {
	return s.replicas.Upsert(ctx, &domain.UserReplica{ID: userID, Username: username})
}

// HandleUserDeleted anonymizes the replica row and the user's authored
// polls; rows stay so references keep resolving.
func (s *pollService) HandleUserDeleted(ctx context.Context, userID uuid.UUID) error {
	if err := s.replicas.Anonymize(ctx, userID); err != nil {
		return fmt.Errorf("failed to anonymize user replica: %w", err)
	}

	anonymized, err := s.repo.AnonymizeByAuthor(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to anonymize polls: %w", err)
	}

	s.log.Info().Stringer("user_id", userID).Int64("polls", anonymized).Msg("author anonymized")
	return nil
}
