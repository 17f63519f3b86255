package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/everypoll/everypoll/internal/core/domain"
	"github.com/everypoll/everypoll/internal/core/ports"
)

const uniqueViolation = pq.ErrorCode("23505")

// voteRepository is the ledger. The partial unique index on (poll_id,
// user_id) is the final arbiter of the at-most-one-vote invariant.
type voteRepository struct {
	db *sql.DB
}

func NewVoteRepository(db *sql.DB) ports.VoteRepository {
	return &voteRepository{db: db}
}

func (r *voteRepository) Insert(ctx context.Context, vote *domain.Vote) error {
	query := `
		INSERT INTO votes (poll_id, option_id, user_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at;
	`
	err := r.db.QueryRowContext(ctx, query, vote.PollID, vote.OptionID, vote.UserID).
		Scan(&vote.ID, &vote.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrAlreadyVoted
		}
		return fmt.Errorf("failed to save vote: %w", err)
	}
	return nil
}

func (r *voteRepository) FindByID(ctx context.Context, id int64) (*domain.Vote, error) {
	query := `
		SELECT id, poll_id, option_id, user_id, created_at
		FROM votes
		WHERE id = $1
	`
	var vote domain.Vote
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&vote.ID, &vote.PollID, &vote.OptionID, &vote.UserID, &vote.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrVoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vote: %w", err)
	}
	return &vote, nil
}

func (r *voteRepository) FindByPollAndVoter(ctx context.Context, pollID, userID uuid.UUID) (*domain.Vote, error) {
	query := `
		SELECT id, poll_id, option_id, user_id, created_at
		FROM votes
		WHERE poll_id = $1 AND user_id = $2
	`
	var vote domain.Vote
	err := r.db.QueryRowContext(ctx, query, pollID, userID).
		Scan(&vote.ID, &vote.PollID, &vote.OptionID, &vote.UserID, &vote.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrVoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vote: %w", err)
	}
	return &vote, nil
}

func (r *voteRepository) FindByVoter(ctx context.Context, userID uuid.UUID) ([]domain.Vote, error) {
	query := `
		SELECT id, poll_id, option_id, user_id, created_at
		FROM votes
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}
	defer rows.Close()

	var votes []domain.Vote
	for rows.Next() {
		var vote domain.Vote
		if err := rows.Scan(&vote.ID, &vote.PollID, &vote.OptionID, &vote.UserID, &vote.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		votes = append(votes, vote)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating votes: %w", err)
	}
	return votes, nil
}

func (r *voteRepository) DeleteByPollAndVoter(ctx context.Context, pollID, userID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM votes WHERE poll_id = $1 AND user_id = $2`, pollID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete vote: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return domain.ErrVoteNotFound
	}
	return nil
}

func (r *voteRepository) DeleteByPoll(ctx context.Context, pollID uuid.UUID) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM votes WHERE poll_id = $1`, pollID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete poll votes: %w", err)
	}
	return result.RowsAffected()
}

func (r *voteRepository) AnonymizeByVoter(ctx context.Context, userID uuid.UUID) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE votes SET user_id = $2 WHERE user_id = $1`, userID, domain.AnonymousVoterID)
	if err != nil {
		return 0, fmt.Errorf("failed to anonymize votes: %w", err)
	}
	return result.RowsAffected()
}

func (r *voteRepository) CountByPoll(ctx context.Context, pollID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM votes WHERE poll_id = $1`, pollID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count votes: %w", err)
	}
	return count, nil
}

func (r *voteRepository) CountByPollAndOption(ctx context.Context, pollID, optionID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM votes WHERE poll_id = $1 AND option_id = $2`, pollID, optionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count option votes: %w", err)
	}
	return count, nil
}

func (r *voteRepository) CountGroupedByOption(ctx context.Context, pollID uuid.UUID) (map[uuid.UUID]int64, error) {
	query := `
		SELECT option_id, COUNT(*)
		FROM votes
		WHERE poll_id = $1
		GROUP BY option_id
	`
	rows, err := r.db.QueryContext(ctx, query, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to count votes by option: %w", err)
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int64)
	for rows.Next() {
		var optionID uuid.UUID
		var count int64
		if err := rows.Scan(&optionID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan option count: %w", err)
		}
		counts[optionID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating option counts: %w", err)
	}
	return counts, nil
}

func (r *voteRepository) VoteTimeBounds(ctx context.Context, pollID uuid.UUID) (*time.Time, *time.Time, error) {
	var first, last sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT MIN(created_at), MAX(created_at) FROM votes WHERE poll_id = $1`, pollID).
		Scan(&first, &last)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read vote time bounds: %w", err)
	}

	var firstAt, lastAt *time.Time
	if first.Valid {
		firstAt = &first.Time
	}
	if last.Valid {
		lastAt = &last.Time
	}
	return firstAt, lastAt, nil
}
