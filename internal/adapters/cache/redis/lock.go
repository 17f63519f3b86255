package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/everypoll/everypoll/internal/core/ports"
)

// DefaultLockTTL bounds how long a crashed holder can block a voter.
const DefaultLockTTL = 10 * time.Second

// voterLock implements the non-blocking per-(poll, voter) mutex on top of
// SET NX with expiry.
type voterLock struct {
	client *redis.Client
	ttl    time.Duration
}

func NewVoterLock(client *redis.Client, ttl time.Duration) ports.VoterLock {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &voterLock{client: client, ttl: ttl}
}

func lockKey(pollID, userID uuid.UUID) string {
	return fmt.Sprintf("vote:lock:%s:%s", pollID, userID)
}

func (l *voterLock) TryLock(ctx context.Context, pollID, userID uuid.UUID) (bool, error) {
	acquired, err := l.client.SetNX(ctx, lockKey(pollID, userID), "locked", l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis lock: %w", err)
	}
	return acquired, nil
}

func (l *voterLock) Unlock(ctx context.Context, pollID, userID uuid.UUID) error {
	if err := l.client.Del(ctx, lockKey(pollID, userID)).Err(); err != nil {
		return fmt.Errorf("redis unlock: %w", err)
	}
	return nil
}
