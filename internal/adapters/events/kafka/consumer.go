package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/everypoll/everypoll/internal/core/domain"
	"github.com/everypoll/everypoll/internal/core/ports"
)

// factSeenTTL bounds how long delivery dedup entries live. Redeliveries
// arrive within seconds; a day is a wide margin.
const factSeenTTL = 24 * time.Hour

// Consumer drives a service's fact handlers from the event log. Delivery is
// at least once; a dedup entry keyed on the fact's EventID filters
// redeliveries before a handler runs. A failed handler releases its dedup
// entry so the next redelivery retries.
type Consumer struct {
	reader   *kafka.Reader
	dedup    ports.Cache
	handlers map[string]ports.FactHandler
	log      zerolog.Logger
}

func NewConsumer(brokers []string, groupID string, topics []string, dedup ports.Cache, log zerolog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		GroupTopics: topics,
		StartOffset: kafka.FirstOffset,
	})

	return &Consumer{
		reader:   reader,
		dedup:    dedup,
		handlers: make(map[string]ports.FactHandler),
		log:      log.With().Str("component", "fact_consumer").Str("group", groupID).Logger(),
	}
}

// Handle registers the handler for one fact kind. Unregistered kinds are
// skipped silently; each service subscribes only to what it applies.
func (c *Consumer) Handle(eventType string, handler ports.FactHandler) {
	c.handlers[eventType] = handler
}

// Run consumes until the context is cancelled. Offsets are committed after
// dispatch, so an uncommitted crash redelivers (at-least-once).
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return c.reader.Close()
			}
			c.log.Error().Err(err).Msg("failed to fetch message")
			continue
		}

		c.dispatch(ctx, msg.Value)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error().Err(err).Msg("failed to commit offset")
		}
	}
}

// dispatch decodes, dedups and applies a single fact. Malformed or unhandled
// messages are dropped; handler failures are logged and left for the next
// redelivery.
func (c *Consumer) dispatch(ctx context.Context, value []byte) {
	fact, err := decodeFact(value)
	if err != nil {
		c.log.Warn().Err(err).Msg("dropping undecodable fact")
		return
	}

	handler, ok := c.handlers[fact.EventType]
	if !ok {
		return
	}

	seenKey := factSeenKey(fact.EventID)
	fresh, err := c.dedup.SetNX(ctx, seenKey, "1", factSeenTTL)
	if err != nil {
		// Dedup store down: proceed anyway. Handlers tolerate replays by
		// design; this only widens the redelivery window.
		c.log.Warn().Err(err).Msg("fact dedup unavailable, applying without dedup")
	} else if !fresh {
		c.log.Debug().
			Str("event_id", fact.EventID).
			Str("event_type", fact.EventType).
			Msg("skipping already-applied fact")
		return
	}

	if err := handler(ctx, fact); err != nil {
		c.log.Error().Err(err).
			Str("event_id", fact.EventID).
			Str("event_type", fact.EventType).
			Msg("fact handler failed")
		// Release the dedup entry so a redelivery can retry.
		if derr := c.dedup.Delete(ctx, seenKey); derr != nil {
			c.log.Warn().Err(derr).Msg("failed to release dedup entry")
		}
		return
	}

	c.log.Info().
		Str("event_id", fact.EventID).
		Str("event_type", fact.EventType).
		Msg("fact applied")
}

func decodeFact(value []byte) (domain.Fact, error) {
	var fact domain.Fact
	if err := json.Unmarshal(value, &fact); err != nil {
		return domain.Fact{}, fmt.Errorf("failed to decode fact: %w", err)
	}
	if fact.EventType == "" || fact.EventID == "" {
		return domain.Fact{}, errors.New("fact missing event id or type")
	}
	return fact, nil
}

func factSeenKey(eventID string) string {
	return "fact:seen:" + eventID
}
