package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/everypoll/everypoll/internal/core/domain"
	"github.com/everypoll/everypoll/internal/core/ports"
)

// memLedger is an in-memory VoteRepository enforcing the same uniqueness
// rule as the real one: at most one row per (poll, voter), anonymized rows
// excluded.
type memLedger struct {
	mu     sync.Mutex
	nextID int64
	votes  []domain.Vote
}

func newMemLedger() *memLedger {
	return &memLedger{nextID: 1}
}

var _ ports.VoteRepository = (*memLedger)(nil)

func (m *memLedger) Insert(_ context.Context, vote *domain.Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if vote.UserID != domain.AnonymousVoterID {
		for _, v := range m.votes {
			if v.PollID == vote.PollID && v.UserID == vote.UserID {
				return domain.ErrAlreadyVoted
			}
		}
	}

	vote.ID = m.nextID
	m.nextID++
	vote.CreatedAt = time.Now().UTC()
	m.votes = append(m.votes, *vote)
	return nil
}

func (m *memLedger) FindByID(_ context.Context, id int64) (*domain.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, v := range m.votes {
		if v.ID == id {
			found := v
			return &found, nil
		}
	}
	return nil, domain.ErrVoteNotFound
}

func (m *memLedger) FindByPollAndVoter(_ context.Context, pollID, userID uuid.UUID) (*domain.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, v := range m.votes {
		if v.PollID == pollID && v.UserID == userID {
			found := v
			return &found, nil
		}
	}
	return nil, domain.ErrVoteNotFound
}

func (m *memLedger) FindByVoter(_ context.Context, userID uuid.UUID) ([]domain.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Vote
	for _, v := range m.votes {
		if v.UserID == userID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memLedger) DeleteByPollAndVoter(_ context.Context, pollID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, v := range m.votes {
		if v.PollID == pollID && v.UserID == userID {
			m.votes = append(m.votes[:i], m.votes[i+1:]...)
			return nil
		}
	}
	return domain.ErrVoteNotFound
}

func (m *memLedger) DeleteByPoll(_ context.Context, pollID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var kept []domain.Vote
	var removed int64
	for _, v := range m.votes {
		if v.PollID == pollID {
			removed++
			continue
		}
		kept = append(kept, v)
	}
	m.votes = kept
	return removed, nil
}

func (m *memLedger) AnonymizeByVoter(_ context.Context, userID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var changed int64
	for i := range m.votes {
		if m.votes[i].UserID == userID {
			m.votes[i].Anonymize()
			changed++
		}
	}
	return changed, nil
}

func (m *memLedger) CountByPoll(_ context.Context, pollID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for _, v := range m.votes {
		if v.PollID == pollID {
			count++
		}
	}
	return count, nil
}

func (m *memLedger) CountByPollAndOption(_ context.Context, pollID, optionID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for _, v := range m.votes {
		if v.PollID == pollID && v.OptionID == optionID {
			count++
		}
	}
	return count, nil
}

func (m *memLedger) CountGroupedByOption(_ context.Context, pollID uuid.UUID) (map[uuid.UUID]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[uuid.UUID]int64)
	for _, v := range m.votes {
		if v.PollID == pollID {
			out[v.OptionID]++
		}
	}
	return out, nil
}

func (m *memLedger) VoteTimeBounds(_ context.Context, pollID uuid.UUID) (*time.Time, *time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var first, last *time.Time
	for _, v := range m.votes {
		if v.PollID != pollID {
			continue
		}
		created := v.CreatedAt
		if first == nil || created.Before(*first) {
			first = &created
		}
		if last == nil || created.After(*last) {
			last = &created
		}
	}
	return first, last, nil
}

// memPublisher records published facts; set failWith to simulate a broken
// event log.
type memPublisher struct {
	mu       sync.Mutex
	facts    []domain.Fact
	failWith error
}

var _ ports.FactPublisher = (*memPublisher)(nil)

func (p *memPublisher) Publish(_ context.Context, fact domain.Fact) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failWith != nil {
		return p.failWith
	}
	p.facts = append(p.facts, fact)
	return nil
}

func (p *memPublisher) published() []domain.Fact {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]domain.Fact, len(p.facts))
	copy(out, p.facts)
	return out
}

func (p *memPublisher) factTypes() []string {
	var types []string
	for _, f := range p.published() {
		types = append(types, f.EventType)
	}
	return types
}

// downLock simulates an unavailable lock layer.
type downLock struct {
	err error
}

var _ ports.VoterLock = (*downLock)(nil)

func (l *downLock) TryLock(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return false, l.err
}

func (l *downLock) Unlock(context.Context, uuid.UUID, uuid.UUID) error {
	return l.err
}
