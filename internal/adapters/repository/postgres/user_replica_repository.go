package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/everypoll/everypoll/internal/core/domain"
	"github.com/everypoll/everypoll/internal/core/ports"
)

// userReplicaRepository holds the poll service's local projection of users.
// It is written only by the poll-side fact consumer.
type userReplicaRepository struct {
	db *sql.DB
}

func NewUserReplicaRepository(db *sql.DB) ports.UserReplicaRepository {
	return &userReplicaRepository{db: db}
}

func (r *userReplicaRepository) Upsert(ctx context.Context, user *domain.UserReplica) error {
	query := `
		INSERT INTO poll_users (id, username)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username
	`
	if _, err := r.db.ExecContext(ctx, query, user.ID, user.Username); err != nil {
		return fmt.Errorf("failed to upsert user replica: %w", err)
	}
	return nil
}

func (r *userReplicaRepository) Anonymize(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE poll_users SET username = 'anonymous' WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("failed to anonymize user replica: %w", err)
	}
	return nil
}
