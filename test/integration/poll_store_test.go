package integration

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everypoll/everypoll/internal/adapters/repository/postgres"
	"github.com/everypoll/everypoll/internal/core/domain"
)

func newTestPoll(author uuid.UUID) *domain.Poll {
	pollID := uuid.New()
	return &domain.Poll{
		ID:          pollID,
		Title:       "Favorite color?",
		Description: "pick one",
		CreatedBy:   author,
		Options: []domain.PollOption{
			{ID: uuid.New(), PollID: pollID, Text: "Red"},
			{ID: uuid.New(), PollID: pollID, Text: "Blue"},
		},
	}
}

func TestPollRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := setupTestDB(t)
	repo := postgres.NewPollRepository(db)
	ctx := context.Background()

	poll := newTestPoll(uuid.New())
	require.NoError(t, repo.Save(ctx, poll))

	stored, err := repo.GetByID(ctx, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, poll.Title, stored.Title)
	require.Len(t, stored.Options, 2)
	assert.Equal(t, int64(0), stored.Options[0].VoteCount)

	require.NoError(t, repo.Delete(ctx, poll.ID))

	_, err = repo.GetByID(ctx, poll.ID)
	assert.ErrorIs(t, err, domain.ErrPollNotFound)

	err = repo.Delete(ctx, poll.ID)
	assert.ErrorIs(t, err, domain.ErrPollNotFound)
}

func TestPollOptionCountClampsAtZero(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := setupTestDB(t)
	repo := postgres.NewPollRepository(db)
	ctx := context.Background()

	poll := newTestPoll(uuid.New())
	require.NoError(t, repo.Save(ctx, poll))
	optionID := poll.Options[0].ID

	require.NoError(t, repo.AdjustOptionCount(ctx, poll.ID, optionID, 1))
	require.NoError(t, repo.AdjustOptionCount(ctx, poll.ID, optionID, -1))
	require.NoError(t, repo.AdjustOptionCount(ctx, poll.ID, optionID, -1))

	stored, err := repo.GetByID(ctx, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.Options[0].VoteCount)
}

func TestUserUniqueConstraints(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := setupTestDB(t)
	repo := postgres.NewUserRepository(db)
	ctx := context.Background()

	user := &domain.User{ID: uuid.New(), Username: "alice", Email: "alice@example.com", PasswordHash: "x"}
	require.NoError(t, repo.Create(ctx, user))
	assert.False(t, user.CreatedAt.IsZero())

	err := repo.Create(ctx, &domain.User{ID: uuid.New(), Username: "alice", Email: "other@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, domain.ErrUsernameTaken)

	err = repo.Create(ctx, &domain.User{ID: uuid.New(), Username: "bob", Email: "alice@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestUserReplicaProjection(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := setupTestDB(t)
	repo := postgres.NewUserReplicaRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	require.NoError(t, repo.Upsert(ctx, &domain.UserReplica{ID: userID, Username: "alice"}))

	// Redelivered fact: same row, updated name.
	require.NoError(t, repo.Upsert(ctx, &domain.UserReplica{ID: userID, Username: "alice2"}))

	var username string
	require.NoError(t, db.QueryRow(`SELECT username FROM poll_users WHERE id = $1`, userID).Scan(&username))
	assert.Equal(t, "alice2", username)

	require.NoError(t, repo.Anonymize(ctx, userID))
	require.NoError(t, db.QueryRow(`SELECT username FROM poll_users WHERE id = $1`, userID).Scan(&username))
	assert.Equal(t, "anonymous", username)
}
