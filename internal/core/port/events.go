package port

import (
	"context"

	"github.com/vyapar-labs/b2b-platform/internal/core/domain"
)

// EventPublisher emits domain events to the message bus. Publication is
// best-effort from the caller's point of view: failures are logged, never
// surfaced to the registrant.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
	PublishUserActivated(ctx context.Context, event domain.UserActivatedEvent) error
}
