package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everypoll/everypoll/internal/core/domain"
	"github.com/everypoll/everypoll/internal/core/ports"
)

func setupTokenStore(t *testing.T) (*miniredis.Miniredis, ports.RefreshTokenStore) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := NewClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return mr, NewRefreshTokenStore(client)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	_, store := setupTokenStore(t)
	ctx := context.Background()

	userID := uuid.New()
	require.NoError(t, store.Save(ctx, "hash-1", userID, time.Hour))

	got, err := store.Lookup(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestRefreshTokenUnknown(t *testing.T) {
	_, store := setupTokenStore(t)

	_, err := store.Lookup(context.Background(), "never-saved")
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestRefreshTokenExpires(t *testing.T) {
	mr, store := setupTokenStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "hash-1", uuid.New(), time.Hour))
	mr.FastForward(2 * time.Hour)

	_, err := store.Lookup(ctx, "hash-1")
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestRefreshTokenRevoke(t *testing.T) {
	_, store := setupTokenStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "hash-1", uuid.New(), time.Hour))
	require.NoError(t, store.Revoke(ctx, "hash-1"))

	_, err := store.Lookup(ctx, "hash-1")
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}
