package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/everypoll/everypoll/internal/core/domain"
	"github.com/everypoll/everypoll/internal/core/ports"
)

const (
	// tallyReadTTL bounds staleness of read-through entries; tallyRebuildTTL
	// is longer because rebuilt entries are known-exact at write time.
	tallyReadTTL    = 5 * time.Minute
	tallyRebuildTTL = time.Hour
)

// aggregationService answers tally queries from the cache with ledger
// fallback. It never locks; readers accept a tally a few seconds stale
// relative to the ledger.
type aggregationService struct {
	ledger ports.VoteRepository
	cache  ports.Cache
	log    zerolog.Logger
}

func NewAggregationService(ledger ports.VoteRepository, cache ports.Cache, log zerolog.Logger) ports.AggregationService {
	return &aggregationService{
		ledger: ledger,
		cache:  cache,
		log:    log.With().Str("component", "aggregation_service").Logger(),
	}
}

func (s *aggregationService) GetTally(ctx context.Context, pollID uuid.UUID, optionIDs []uuid.UUID) (*domain.TallyResult, error) {
	total, err := s.readThroughCount(ctx, totalCountKey(pollID), func(ctx context.Context) (int64, error) {
		return s.ledger.CountByPoll(ctx, pollID)
	})
	if err != nil {
		return nil, err
	}

	options := make([]domain.OptionResult, 0, len(optionIDs))
	for _, optionID := range optionIDs {
		count, err := s.readThroughCount(ctx, optionCountKey(pollID, optionID), func(ctx context.Context) (int64, error) {
			return s.ledger.CountByPollAndOption(ctx, pollID, optionID)
		})
		if err != nil {
			return nil, err
		}

		options = append(options, domain.OptionResult{
			OptionID:   optionID,
			VoteCount:  count,
			Percentage: percentage(count, total),
		})
	}

	return &domain.TallyResult{
		PollID:      pollID,
		TotalVotes:  total,
		Options:     options,
		LastUpdated: s.lastUpdated(ctx, pollID),
	}, nil
}

// GetStats is an administrative read computed entirely from the ledger.
func (s *aggregationService) GetStats(ctx context.Context, pollID uuid.UUID) (*domain.VoteStats, error) {
	total, err := s.ledger.CountByPoll(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to count votes: %w", err)
	}

	byOption, err := s.ledger.CountGroupedByOption(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to count votes by option: %w", err)
	}

	first, last, err := s.ledger.VoteTimeBounds(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to read vote time bounds: %w", err)
	}

	return &domain.VoteStats{
		PollID:        pollID,
		TotalVotes:    total,
		UniqueVoters:  total, // one vote per voter
		FirstVoteAt:   first,
		LastVoteAt:    last,
		VotesByOption: byOption,
	}, nil
}

// RebuildTally recomputes counts from the ledger and overwrites the cache.
// Overwrites are last-write-wins; a rebuild racing a cast may undercount by
// one and self-heals on the next cast or read-through.
func (s *aggregationService) RebuildTally(ctx context.Context, pollID uuid.UUID, optionIDs []uuid.UUID) error {
	total, err := s.ledger.CountByPoll(ctx, pollID)
	if err != nil {
		return fmt.Errorf("failed to count votes: %w", err)
	}
	if err := s.cache.Set(ctx, totalCountKey(pollID), strconv.FormatInt(total, 10), tallyRebuildTTL); err != nil {
		return fmt.Errorf("failed to write total count: %w", err)
	}

	for _, optionID := range optionIDs {
		count, err := s.ledger.CountByPollAndOption(ctx, pollID, optionID)
		if err != nil {
			return fmt.Errorf("failed to count votes for option %s: %w", optionID, err)
		}
		if err := s.cache.Set(ctx, optionCountKey(pollID, optionID), strconv.FormatInt(count, 10), tallyRebuildTTL); err != nil {
			return fmt.Errorf("failed to write option count: %w", err)
		}
	}

	s.touchLastUpdated(ctx, pollID)

	s.log.Info().Stringer("poll_id", pollID).Int64("total_votes", total).Msg("tally cache rebuilt")
	return nil
}

func (s *aggregationService) Invalidate(ctx context.Context, pollID uuid.UUID) error {
	return s.cache.DeletePattern(ctx, pollCachePattern(pollID))
}

func (s *aggregationService) IncrementTally(ctx context.Context, pollID, optionID uuid.UUID) {
	if _, err := s.cache.Increment(ctx, optionCountKey(pollID, optionID)); err != nil {
		s.log.Warn().Err(err).Msg("failed to increment option count")
	}
	if _, err := s.cache.Increment(ctx, totalCountKey(pollID)); err != nil {
		s.log.Warn().Err(err).Msg("failed to increment total count")
	}
	s.touchLastUpdated(ctx, pollID)
}

func (s *aggregationService) DecrementTally(ctx context.Context, pollID, optionID uuid.UUID) {
	if _, err := s.cache.DecrementFloor(ctx, optionCountKey(pollID, optionID)); err != nil {
		s.log.Warn().Err(err).Msg("failed to decrement option count")
	}
	if _, err := s.cache.DecrementFloor(ctx, totalCountKey(pollID)); err != nil {
		s.log.Warn().Err(err).Msg("failed to decrement total count")
	}
	s.touchLastUpdated(ctx, pollID)
}

// readThroughCount reads a counter from the cache, falling back to the
// ledger on a miss (or when the cached value is zero, which is
// indistinguishable from an evicted entry) and repopulating with a TTL.
func (s *aggregationService) readThroughCount(ctx context.Context, key string, count func(context.Context) (int64, error)) (int64, error) {
	raw, err := s.cache.Get(ctx, key)
	if err == nil {
		if cached, perr := strconv.ParseInt(raw, 10, 64); perr == nil && cached > 0 {
			return cached, nil
		}
	} else if !errors.Is(err, domain.ErrCacheMiss) {
		s.log.Warn().Err(err).Str("key", key).Msg("tally cache unavailable, serving from ledger")
	}

	fromLedger, err := count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count votes from ledger: %w", err)
	}

	if fromLedger > 0 {
		if err := s.cache.Set(ctx, key, strconv.FormatInt(fromLedger, 10), tallyReadTTL); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("failed to repopulate tally cache")
		}
	}

	return fromLedger, nil
}

func (s *aggregationService) lastUpdated(ctx context.Context, pollID uuid.UUID) time.Time {
	raw, err := s.cache.Get(ctx, lastUpdatedKey(pollID))
	if err == nil {
		if millis, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			return time.UnixMilli(millis).UTC()
		}
	}
	return time.Now().UTC()
}

func (s *aggregationService) touchLastUpdated(ctx context.Context, pollID uuid.UUID) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if err := s.cache.Set(ctx, lastUpdatedKey(pollID), now, 0); err != nil {
		s.log.Warn().Err(err).Msg("failed to update tally timestamp")
	}
}

func percentage(count, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(count)*10000/float64(total)) / 100
}
