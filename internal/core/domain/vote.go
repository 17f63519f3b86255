package domain

import (
	"time"

	"github.com/google/uuid"
)

// AnonymousVoterID replaces the voter on votes whose owner has been deleted.
// Rows are kept so aggregate counts survive user deletion.
var AnonymousVoterID = uuid.Nil

type Vote struct {
	ID        int64     `json:"id"`
	PollID    uuid.UUID `json:"poll_id"`
	OptionID  uuid.UUID `json:"option_id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (v *Vote) Anonymize() {
	v.UserID = AnonymousVoterID
}
