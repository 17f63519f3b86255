package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everypoll/everypoll/internal/core/domain"
)

// fakeDedup implements the dedup subset of ports.Cache used by dispatch.
type fakeDedup struct {
	mu   sync.Mutex
	seen map[string]string
	err  error
}

func newFakeDedup() *fakeDedup {
	return &fakeDedup{seen: make(map[string]string)}
}

func (f *fakeDedup) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	val, ok := f.seen[key]
	if !ok {
		return "", domain.ErrCacheMiss
	}
	return val, nil
}

func (f *fakeDedup) Set(_ context.Context, key, value string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.seen[key] = value
	return nil
}

func (f *fakeDedup) SetNX(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if _, ok := f.seen[key]; ok {
		return false, nil
	}
	f.seen[key] = value
	return true, nil
}

func (f *fakeDedup) Increment(context.Context, string) (int64, error)      { return 0, nil }
func (f *fakeDedup) DecrementFloor(context.Context, string) (int64, error) { return 0, nil }

func (f *fakeDedup) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, key := range keys {
		delete(f.seen, key)
	}
	return nil
}

func (f *fakeDedup) DeletePattern(context.Context, string) error { return nil }

func setupConsumer(t *testing.T) (*fakeDedup, *Consumer) {
	t.Helper()

	dedup := newFakeDedup()
	consumer := NewConsumer([]string{"localhost:9092"}, "test-group", []string{VoteEventsTopic}, dedup, zerolog.Nop())
	return dedup, consumer
}

func encodeFact(t *testing.T, fact domain.Fact) []byte {
	t.Helper()
	value, err := json.Marshal(fact)
	require.NoError(t, err)
	return value
}

func TestDispatchAppliesFactOnce(t *testing.T) {
	_, consumer := setupConsumer(t)

	var applied []string
	consumer.Handle(domain.FactVoteCreated, func(_ context.Context, fact domain.Fact) error {
		applied = append(applied, fact.EventID)
		return nil
	})

	fact := domain.NewVoteCreatedFact(1, uuid.New(), uuid.New(), uuid.New())
	value := encodeFact(t, fact)

	consumer.dispatch(context.Background(), value)
	consumer.dispatch(context.Background(), value)

	assert.Equal(t, []string{fact.EventID}, applied)
}

func TestDispatchSkipsUnhandledKind(t *testing.T) {
	dedup, consumer := setupConsumer(t)

	consumer.dispatch(context.Background(), encodeFact(t, domain.NewUserCreatedFact(uuid.New(), "alice")))

	// No handler means no dedup entry is burned either.
	assert.Empty(t, dedup.seen)
}

func TestDispatchDropsMalformedMessage(t *testing.T) {
	_, consumer := setupConsumer(t)

	consumer.Handle(domain.FactVoteCreated, func(context.Context, domain.Fact) error {
		t.Fatal("handler must not run for malformed input")
		return nil
	})

	consumer.dispatch(context.Background(), []byte("not json"))
	consumer.dispatch(context.Background(), []byte(`{"pollId":"`+uuid.NewString()+`"}`))
}

func TestDispatchRetriesAfterHandlerFailure(t *testing.T) {
	_, consumer := setupConsumer(t)

	var calls int
	consumer.Handle(domain.FactVoteCreated, func(context.Context, domain.Fact) error {
		calls++
		if calls == 1 {
			return errors.New("transient")
		}
		return nil
	})

	value := encodeFact(t, domain.NewVoteCreatedFact(1, uuid.New(), uuid.New(), uuid.New()))

	// First delivery fails and releases the dedup entry; the redelivery
	// succeeds; the third is filtered.
	consumer.dispatch(context.Background(), value)
	consumer.dispatch(context.Background(), value)
	consumer.dispatch(context.Background(), value)

	assert.Equal(t, 2, calls)
}

func TestDispatchProceedsWhenDedupDown(t *testing.T) {
	dedup, consumer := setupConsumer(t)
	dedup.err = errors.New("redis down")

	var calls int
	consumer.Handle(domain.FactVoteCreated, func(context.Context, domain.Fact) error {
		calls++
		return nil
	})

	value := encodeFact(t, domain.NewVoteCreatedFact(1, uuid.New(), uuid.New(), uuid.New()))
	consumer.dispatch(context.Background(), value)

	assert.Equal(t, 1, calls)
}
