package services

import (
	"context"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisadapter "github.com/everypoll/everypoll/internal/adapters/cache/redis"
	"github.com/everypoll/everypoll/internal/core/domain"
	"github.com/everypoll/everypoll/internal/core/ports"
)

type tallyFixture struct {
	mr      *miniredis.Miniredis
	ledger  *memLedger
	cache   ports.Cache
	service ports.AggregationService
}

func setupAggregation(t *testing.T) *tallyFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := redisadapter.NewClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	ledger := newMemLedger()
	cache := redisadapter.NewCache(client)

	return &tallyFixture{
		mr:      mr,
		ledger:  ledger,
		cache:   cache,
		service: NewAggregationService(ledger, cache, zerolog.Nop()),
	}
}

func (f *tallyFixture) seedVotes(t *testing.T, pollID, optionID uuid.UUID, n int) {
	t.Helper()
	for range n {
		err := f.ledger.Insert(context.Background(), &domain.Vote{
			PollID:   pollID,
			OptionID: optionID,
			UserID:   uuid.New(),
		})
		require.NoError(t, err)
	}
}

func TestGetTallyReadThrough(t *testing.T) {
	f := setupAggregation(t)
	ctx := context.Background()

	pollID, optionA, optionB := uuid.New(), uuid.New(), uuid.New()
	f.seedVotes(t, pollID, optionA, 1)
	f.seedVotes(t, pollID, optionB, 2)

	tally, err := f.service.GetTally(ctx, pollID, []uuid.UUID{optionA, optionB})
	require.NoError(t, err)
	assert.Equal(t, int64(3), tally.TotalVotes)
	assert.Equal(t, int64(1), tally.Options[0].VoteCount)
	assert.InDelta(t, 33.33, tally.Options[0].Percentage, 0.001)
	assert.Equal(t, int64(2), tally.Options[1].VoteCount)
	assert.InDelta(t, 66.67, tally.Options[1].Percentage, 0.001)

	// The miss repopulated the cache.
	total, err := f.cache.Get(ctx, totalCountKey(pollID))
	require.NoError(t, err)
	assert.Equal(t, "3", total)
}

func TestGetTallyPrefersCache(t *testing.T) {
	f := setupAggregation(t)
	ctx := context.Background()

	pollID, optionID := uuid.New(), uuid.New()
	f.seedVotes(t, pollID, optionID, 1)

	// A cached value wins over the ledger even when they disagree.
	require.NoError(t, f.cache.Set(ctx, totalCountKey(pollID), "5", 0))
	require.NoError(t, f.cache.Set(ctx, optionCountKey(pollID, optionID), "5", 0))

	tally, err := f.service.GetTally(ctx, pollID, []uuid.UUID{optionID})
	require.NoError(t, err)
	assert.Equal(t, int64(5), tally.TotalVotes)
	assert.Equal(t, int64(5), tally.Options[0].VoteCount)
}

func TestGetTallyEmptyPoll(t *testing.T) {
	f := setupAggregation(t)

	pollID, optionID := uuid.New(), uuid.New()

	tally, err := f.service.GetTally(context.Background(), pollID, []uuid.UUID{optionID})
	require.NoError(t, err)
	assert.Equal(t, int64(0), tally.TotalVotes)
	assert.Equal(t, float64(0), tally.Options[0].Percentage)
	assert.False(t, tally.LastUpdated.IsZero())
}

func TestRebuildTallyMatchesLedger(t *testing.T) {
	f := setupAggregation(t)
	ctx := context.Background()

	pollID, optionA, optionB := uuid.New(), uuid.New(), uuid.New()
	f.seedVotes(t, pollID, optionA, 4)
	f.seedVotes(t, pollID, optionB, 6)

	// Poison the cache; rebuild must overwrite it.
	require.NoError(t, f.cache.Set(ctx, totalCountKey(pollID), "999", 0))

	require.NoError(t, f.service.RebuildTally(ctx, pollID, []uuid.UUID{optionA, optionB}))

	for key, want := range map[string]int64{
		totalCountKey(pollID):           10,
		optionCountKey(pollID, optionA): 4,
		optionCountKey(pollID, optionB): 6,
	} {
		raw, err := f.cache.Get(ctx, key)
		require.NoError(t, err)
		got, err := strconv.ParseInt(raw, 10, 64)
		require.NoError(t, err)
		assert.Equal(t, want, got, key)
	}
}

func TestInvalidateClearsPollKeysOnly(t *testing.T) {
	f := setupAggregation(t)
	ctx := context.Background()

	pollID, otherPoll, optionID := uuid.New(), uuid.New(), uuid.New()
	require.NoError(t, f.cache.Set(ctx, totalCountKey(pollID), "3", 0))
	require.NoError(t, f.cache.Set(ctx, optionCountKey(pollID, optionID), "3", 0))
	require.NoError(t, f.cache.Set(ctx, totalCountKey(otherPoll), "7", 0))

	require.NoError(t, f.service.Invalidate(ctx, pollID))

	_, err := f.cache.Get(ctx, totalCountKey(pollID))
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
	_, err = f.cache.Get(ctx, optionCountKey(pollID, optionID))
	assert.ErrorIs(t, err, domain.ErrCacheMiss)

	raw, err := f.cache.Get(ctx, totalCountKey(otherPoll))
	require.NoError(t, err)
	assert.Equal(t, "7", raw)
}

func TestGetStats(t *testing.T) {
	f := setupAggregation(t)
	ctx := context.Background()

	pollID, optionA, optionB := uuid.New(), uuid.New(), uuid.New()
	f.seedVotes(t, pollID, optionA, 2)
	f.seedVotes(t, pollID, optionB, 1)

	stats, err := f.service.GetStats(ctx, pollID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalVotes)
	assert.Equal(t, int64(3), stats.UniqueVoters)
	assert.Equal(t, int64(2), stats.VotesByOption[optionA])
	assert.Equal(t, int64(1), stats.VotesByOption[optionB])
	require.NotNil(t, stats.FirstVoteAt)
	require.NotNil(t, stats.LastVoteAt)
	assert.False(t, stats.LastVoteAt.Before(*stats.FirstVoteAt))
}

func TestGetStatsEmptyPoll(t *testing.T) {
	f := setupAggregation(t)

	stats, err := f.service.GetStats(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalVotes)
	assert.Nil(t, stats.FirstVoteAt)
	assert.Nil(t, stats.LastVoteAt)
}
