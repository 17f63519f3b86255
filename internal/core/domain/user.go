package domain

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserReplica is the poll service's local projection of a user, maintained
// only by applying user facts. It is never written through directly.
type UserReplica struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}
