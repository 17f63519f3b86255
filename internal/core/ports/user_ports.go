package ports

import (
	"context"
	"time"

	"github.com/everypoll/everypoll/internal/core/domain"
	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// RefreshTokenStore keeps hashed refresh tokens with a TTL. Lookup returns
// domain.ErrTokenInvalid for unknown, revoked or expired tokens.
type RefreshTokenStore interface {
	Save(ctx context.Context, tokenHash string, userID uuid.UUID, ttl time.Duration) error
	Lookup(ctx context.Context, tokenHash string) (uuid.UUID, error)
	Revoke(ctx context.Context, tokenHash string) error
}

type SignUpInput struct {
	Username string
	Email    string
	Password string
}

type IdentityService interface {
	SignUp(ctx context.Context, input SignUpInput) (*domain.User, error)
	Login(ctx context.Context, username, password string) (accessToken, refreshToken string, err error)
	Refresh(ctx context.Context, refreshToken string) (accessToken string, err error)
	Logout(ctx context.Context, refreshToken string) error
	DeleteAccount(ctx context.Context, userID uuid.UUID) error
}
