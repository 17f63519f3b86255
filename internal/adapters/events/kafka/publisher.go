package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/everypoll/everypoll/internal/core/domain"
	"github.com/everypoll/everypoll/internal/core/ports"
)

// Publisher writes facts to the event log. The writer runs in async mode so
// callers never wait on broker acknowledgment; the completion callback logs
// the outcome of each delivery.
type Publisher struct {
	writer *kafka.Writer
	log    zerolog.Logger
}

func NewPublisher(brokers []string, log zerolog.Logger) *Publisher {
	plog := log.With().Str("component", "fact_publisher").Logger()

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		Async:                  true,
		AllowAutoTopicCreation: true,
	}
	writer.Completion = func(messages []kafka.Message, err error) {
		for _, msg := range messages {
			if err != nil {
				plog.Error().Err(err).
					Str("topic", msg.Topic).
					Str("key", string(msg.Key)).
					Msg("fact delivery failed")
				continue
			}
			plog.Debug().
				Str("topic", msg.Topic).
				Str("key", string(msg.Key)).
				Msg("fact delivered")
		}
	}

	return &Publisher{writer: writer, log: plog}
}

var _ ports.FactPublisher = (*Publisher)(nil)

func (p *Publisher) Publish(ctx context.Context, fact domain.Fact) error {
	value, err := json.Marshal(fact)
	if err != nil {
		return fmt.Errorf("failed to encode fact: %w", err)
	}

	msg := kafka.Message{
		Topic: topicFor(fact.EventType),
		Key:   []byte(fact.PartitionKey()),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to enqueue fact: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
