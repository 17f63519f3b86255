package ports

import (
	"context"

	"github.com/everypoll/everypoll/internal/core/domain"
)

type FactPublisher interface {
	Publish(ctx context.Context, fact domain.Fact) error
}

// FactHandler reacts to a single fact. Delivery is at least once, so
// implementations must be idempotent or rely on the consumer's dedup.
type FactHandler func(ctx context.Context, fact domain.Fact) error
