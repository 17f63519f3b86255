package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/everypoll/everypoll/internal/core/domain"
	"github.com/everypoll/everypoll/internal/core/ports"
)

// refreshTokenStore keeps hashed refresh tokens with their TTL; expiry in
// redis doubles as token expiry.
type refreshTokenStore struct {
	client *redis.Client
}

func NewRefreshTokenStore(client *redis.Client) ports.RefreshTokenStore {
	return &refreshTokenStore{client: client}
}

func refreshTokenKey(tokenHash string) string {
	return "auth:refresh:" + tokenHash
}

func (s *refreshTokenStore) Save(ctx context.Context, tokenHash string, userID uuid.UUID, ttl time.Duration) error {
	if err := s.client.Set(ctx, refreshTokenKey(tokenHash), userID.String(), ttl).Err(); err != nil {
		return fmt.Errorf("redis set refresh token: %w", err)
	}
	return nil
}

func (s *refreshTokenStore) Lookup(ctx context.Context, tokenHash string) (uuid.UUID, error) {
	raw, err := s.client.Get(ctx, refreshTokenKey(tokenHash)).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, domain.ErrTokenInvalid
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("redis get refresh token: %w", err)
	}

	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.ErrTokenInvalid
	}
	return userID, nil
}

func (s *refreshTokenStore) Revoke(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, refreshTokenKey(tokenHash)).Err(); err != nil {
		return fmt.Errorf("redis revoke refresh token: %w", err)
	}
	return nil
}
