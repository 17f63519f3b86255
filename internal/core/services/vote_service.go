package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/everypoll/everypoll/internal/core/domain"
	"github.com/everypoll/everypoll/internal/core/ports"
)

// markerTTL bounds drift of the "already voted" marker; the ledger remains
// the authority on misses.
const markerTTL = 24 * time.Hour

// voteService is the vote coordinator. Dedup is three-tiered: voter lock,
// membership marker, then the ledger's uniqueness constraint as the final
// arbiter. The lock and cache are optimizations and are never trusted alone.
type voteService struct {
	ledger    ports.VoteRepository
	cache     ports.Cache
	lock      ports.VoterLock
	tally     ports.AggregationService
	publisher ports.FactPublisher
	log       zerolog.Logger
}

func NewVoteService(
	ledger ports.VoteRepository,
	cache ports.Cache,
	lock ports.VoterLock,
	tally ports.AggregationService,
	publisher ports.FactPublisher,
	log zerolog.Logger,
) ports.VoteService {
	return &voteService{
		ledger:    ledger,
		cache:     cache,
		lock:      lock,
		tally:     tally,
		publisher: publisher,
		log:       log.With().Str("component", "vote_service").Logger(),
	}
}

func (s *voteService) Cast(ctx context.Context, input ports.CastVoteInput) (*domain.Vote, error) {
	unlock, err := s.acquireLock(ctx, input.PollID, input.UserID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.castLocked(ctx, input)
}

func (s *voteService) Cancel(ctx context.Context, pollID, userID uuid.UUID) error {
	unlock, err := s.acquireLock(ctx, pollID, userID)
	if err != nil {
		return err
	}
	defer unlock()

	return s.cancelLocked(ctx, pollID, userID)
}

func (s *voteService) cancelLocked(ctx context.Context, pollID, userID uuid.UUID) error {
	vote, err := s.ledger.FindByPollAndVoter(ctx, pollID, userID)
	if err != nil {
		return err
	}

	if err := s.ledger.DeleteByPollAndVoter(ctx, pollID, userID); err != nil {
		return fmt.Errorf("failed to delete vote: %w", err)
	}

	if err := s.cache.Delete(ctx, voterMarkerKey(pollID, userID)); err != nil {
		s.log.Warn().Err(err).Msg("failed to clear membership marker, TTL will reclaim it")
	}
	s.tally.DecrementTally(ctx, pollID, vote.OptionID)
	s.publish(ctx, domain.NewVoteCancelledFact(vote.ID, pollID, vote.OptionID, userID))

	s.log.Info().
		Int64("vote_id", vote.ID).
		Stringer("poll_id", pollID).
		Msg("vote cancelled")

	return nil
}

// ChangeVote cancels any existing vote and casts a new one. The two ledger
// operations are not atomic: a crash in between leaves the voter with no
// vote, which self-corrects when they vote again and never double-counts.
func (s *voteService) ChangeVote(ctx context.Context, input ports.CastVoteInput) (*domain.Vote, error) {
	unlock, err := s.acquireLock(ctx, input.PollID, input.UserID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	_, err = s.ledger.FindByPollAndVoter(ctx, input.PollID, input.UserID)
	switch {
	case err == nil:
		if err := s.cancelLocked(ctx, input.PollID, input.UserID); err != nil {
			return nil, err
		}
	case errors.Is(err, domain.ErrVoteNotFound):
		// Nothing to cancel, fall through to the cast.
	default:
		return nil, fmt.Errorf("failed to check existing vote: %w", err)
	}

	// Clear the marker between the two steps so the cast cannot trip on a
	// stale "already voted" entry it just invalidated.
	if err := s.cache.Delete(ctx, voterMarkerKey(input.PollID, input.UserID)); err != nil {
		s.log.Warn().Err(err).Msg("failed to clear membership marker before re-cast")
	}

	return s.castLocked(ctx, input)
}

// castLocked runs the cast protocol under an already-held voter lock:
// marker check, authoritative ledger check, insert, cache update, publish.
func (s *voteService) castLocked(ctx context.Context, input ports.CastVoteInput) (*domain.Vote, error) {
	if _, err := s.cache.Get(ctx, voterMarkerKey(input.PollID, input.UserID)); err == nil {
		return nil, domain.ErrAlreadyVoted
	} else if !errors.Is(err, domain.ErrCacheMiss) {
		s.log.Warn().Err(err).Msg("membership marker unavailable, checking ledger")
	}

	existing, err := s.ledger.FindByPollAndVoter(ctx, input.PollID, input.UserID)
	if err == nil {
		// Self-heal the marker so the next duplicate is caught without a
		// ledger round trip.
		s.putMarker(ctx, input.PollID, input.UserID, existing.OptionID)
		return nil, domain.ErrAlreadyVoted
	}
	if !errors.Is(err, domain.ErrVoteNotFound) {
		return nil, fmt.Errorf("failed to check existing vote: %w", err)
	}

	vote := &domain.Vote{
		PollID:   input.PollID,
		OptionID: input.OptionID,
		UserID:   input.UserID,
	}
	if err := s.ledger.Insert(ctx, vote); err != nil {
		if errors.Is(err, domain.ErrAlreadyVoted) {
			// Lost a race with another coordinator instance; the ledger
			// constraint is the safety net.
			return nil, domain.ErrAlreadyVoted
		}
		return nil, fmt.Errorf("failed to save vote: %w", err)
	}

	s.putMarker(ctx, input.PollID, input.UserID, vote.OptionID)
	s.tally.IncrementTally(ctx, input.PollID, input.OptionID)
	s.publish(ctx, domain.NewVoteCreatedFact(vote.ID, vote.PollID, vote.OptionID, vote.UserID))

	s.log.Info().
		Int64("vote_id", vote.ID).
		Stringer("poll_id", vote.PollID).
		Stringer("option_id", vote.OptionID).
		Msg("vote cast")

	return vote, nil
}

func (s *voteService) HasVoted(ctx context.Context, pollID, userID uuid.UUID) (bool, error) {
	if _, err := s.cache.Get(ctx, voterMarkerKey(pollID, userID)); err == nil {
		return true, nil
	}

	vote, err := s.ledger.FindByPollAndVoter(ctx, pollID, userID)
	if errors.Is(err, domain.ErrVoteNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.putMarker(ctx, pollID, userID, vote.OptionID)
	return true, nil
}

func (s *voteService) VotedOption(ctx context.Context, pollID, userID uuid.UUID) (uuid.UUID, bool, error) {
	if raw, err := s.cache.Get(ctx, voterMarkerKey(pollID, userID)); err == nil {
		if optionID, perr := uuid.Parse(raw); perr == nil {
			return optionID, true, nil
		}
	}

	vote, err := s.ledger.FindByPollAndVoter(ctx, pollID, userID)
	if errors.Is(err, domain.ErrVoteNotFound) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}

	s.putMarker(ctx, pollID, userID, vote.OptionID)
	return vote.OptionID, true, nil
}

func (s *voteService) GetVote(ctx context.Context, voteID int64) (*domain.Vote, error) {
	return s.ledger.FindByID(ctx, voteID)
}

func (s *voteService) VoteHistory(ctx context.Context, userID uuid.UUID) ([]domain.Vote, error) {
	return s.ledger.FindByVoter(ctx, userID)
}

// HandlePollDeleted applies a remote poll-deleted fact: cascading removal of
// the poll's vote records plus cache invalidation. Deleting a set is
// idempotent by construction.
func (s *voteService) HandlePollDeleted(ctx context.Context, pollID uuid.UUID) error {
	removed, err := s.ledger.DeleteByPoll(ctx, pollID)
	if err != nil {
		return fmt.Errorf("failed to delete votes for poll %s: %w", pollID, err)
	}

	if err := s.tally.Invalidate(ctx, pollID); err != nil {
		s.log.Warn().Err(err).Stringer("poll_id", pollID).Msg("failed to invalidate tally cache")
	}

	s.log.Info().Stringer("poll_id", pollID).Int64("removed", removed).Msg("poll votes removed")
	return nil
}

// HandleUserDeleted anonymizes the user's votes instead of deleting them so
// aggregate counts are preserved. Rewriting to the sentinel is idempotent.
func (s *voteService) HandleUserDeleted(ctx context.Context, userID uuid.UUID) error {
	anonymized, err := s.ledger.AnonymizeByVoter(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to anonymize votes for user %s: %w", userID, err)
	}

	s.log.Info().Stringer("user_id", userID).Int64("anonymized", anonymized).Msg("user votes anonymized")
	return nil
}

// acquireLock takes the voter lock non-blocking. A busy lock fails fast with
// ErrBusy. If the lock layer itself is down the cast proceeds: the ledger
// constraint still enforces the invariant, just without the fast path.
func (s *voteService) acquireLock(ctx context.Context, pollID, userID uuid.UUID) (func(), error) {
	acquired, err := s.lock.TryLock(ctx, pollID, userID)
	if err != nil {
		s.log.Warn().Err(err).Msg("voter lock unavailable, relying on ledger constraint")
		return func() {}, nil
	}
	if !acquired {
		return nil, domain.ErrBusy
	}

	return func() {
		if err := s.lock.Unlock(context.WithoutCancel(ctx), pollID, userID); err != nil {
			s.log.Warn().Err(err).Msg("failed to release voter lock, expiry will reclaim it")
		}
	}, nil
}

func (s *voteService) putMarker(ctx context.Context, pollID, userID, optionID uuid.UUID) {
	if err := s.cache.Set(ctx, voterMarkerKey(pollID, userID), optionID.String(), markerTTL); err != nil {
		s.log.Warn().Err(err).Msg("failed to set membership marker")
	}
}

// publish is best effort: a lost fact never rolls back the ledger write. The
// fact carries enough identity to be replayed out of band.
func (s *voteService) publish(ctx context.Context, fact domain.Fact) {
	if err := s.publisher.Publish(ctx, fact); err != nil {
		s.log.Error().Err(err).
			Str("event_type", fact.EventType).
			Str("event_id", fact.EventID).
			Msg("failed to publish fact, vote remains authoritative")
	}
}
