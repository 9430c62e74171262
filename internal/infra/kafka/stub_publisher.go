package kafka

import (
	"context"

	"go.uber.org/zap"

	"github.com/vyapar-labs/b2b-platform/internal/core/domain"
	"github.com/vyapar-labs/b2b-platform/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Used when no
// brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

var _ port.EventPublisher = (*StubPublisher)(nil)

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

// PublishUserRegistered logs user.registered events.
func (p *StubPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	p.logger.Info("stub event published",
		zap.String("event_type", "user.registered"),
		zap.Int64("user_id", event.UserID),
		zap.String("username", event.Username),
		zap.Time("timestamp", event.RegisteredAt),
	)
	return nil
}

// PublishUserActivated logs user.activated events.
func (p *StubPublisher) PublishUserActivated(_ context.Context, event domain.UserActivatedEvent) error {
	p.logger.Info("stub event published",
		zap.String("event_type", "user.activated"),
		zap.Int64("user_id", event.UserID),
		zap.Time("timestamp", event.ActivatedAt),
	)
	return nil
}
