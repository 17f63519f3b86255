package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Cache is the tally cache contract. Get returns domain.ErrCacheMiss when the
// key is absent; any other error means the cache is unavailable and callers
// degrade to the ledger.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Increment(ctx context.Context, key string) (int64, error)
	// DecrementFloor decrements but never below zero and never creates the key.
	DecrementFloor(ctx context.Context, key string) (int64, error)
	Delete(ctx context.Context, keys ...string) error
	DeletePattern(ctx context.Context, pattern string) error
}

// VoterLock serializes cast/cancel/change attempts for one (poll, voter)
// pair. TryLock is non-blocking; the lock auto-expires so a crashed holder
// cannot wedge the voter.
type VoterLock interface {
	TryLock(ctx context.Context, pollID, userID uuid.UUID) (bool, error)
	Unlock(ctx context.Context, pollID, userID uuid.UUID) error
}
