package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/everypoll/everypoll/internal/core/domain"
	"github.com/everypoll/everypoll/internal/core/ports"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour
)

type identityService struct {
	users     ports.UserRepository
	tokens    ports.RefreshTokenStore
	publisher ports.FactPublisher
	jwtSecret []byte
	log       zerolog.Logger
}

func NewIdentityService(
	users ports.UserRepository,
	tokens ports.RefreshTokenStore,
	publisher ports.FactPublisher,
	jwtSecret []byte,
	log zerolog.Logger,
) ports.IdentityService {
	return &identityService{
		users:     users,
		tokens:    tokens,
		publisher: publisher,
		jwtSecret: jwtSecret,
		log:       log.With().Str("component", "identity_service").Logger(),
	}
}

func (s *identityService) SignUp(ctx context.Context, input ports.SignUpInput) (*domain.User, error) {
	if input.Username == "" || input.Email == "" {
		return nil, errors.New("username and email are required")
	}
	if len(input.Password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	fact := domain.NewUserCreatedFact(user.ID, user.Username)
	if err := s.publisher.Publish(ctx, fact); err != nil {
		s.log.Error().Err(err).Stringer("user_id", user.ID).Msg("failed to publish user-created fact")
	}

	s.log.Info().Stringer("user_id", user.ID).Msg("user signed up")
	return user, nil
}

func (s *identityService) Login(ctx context.Context, username, password string) (string, string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		return "", "", domain.ErrInvalidCredentials
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", "", domain.ErrInvalidCredentials
	}

	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := generateRefreshToken()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	if err := s.tokens.Save(ctx, hashToken(refreshToken), user.ID, refreshTokenTTL); err != nil {
		return "", "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return accessToken, refreshToken, nil
}

func (s *identityService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	userID, err := s.tokens.Lookup(ctx, hashToken(refreshToken))
	if err != nil {
		return "", err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}

	// The refresh token is kept until expiry rather than rotated.
	return s.generateAccessToken(user)
}

func (s *identityService) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.Revoke(ctx, hashToken(refreshToken))
}

func (s *identityService) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	fact := domain.NewUserDeletedFact(user.ID, user.Username)
	if err := s.publisher.Publish(ctx, fact); err != nil {
		s.log.Error().Err(err).Stringer("user_id", userID).Msg("failed to publish user-deleted fact")
	}

	s.log.Info().Stringer("user_id", userID).Msg("account deleted")
	return nil
}

func (s *identityService) generateAccessToken(user *domain.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":      user.ID.String(),
		"username": user.Username,
		"exp":      time.Now().Add(accessTokenTTL).Unix(),
		"iat":      time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func generateRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
