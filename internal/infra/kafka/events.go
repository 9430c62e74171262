package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vyapar-labs/b2b-platform/internal/core/domain"
	"github.com/vyapar-labs/b2b-platform/internal/core/port"
	"github.com/vyapar-labs/b2b-platform/internal/infra/config"
)

const schemaVersion = "1.0"

// Topics carrying registration lifecycle events, relative to the prefix.
const (
	topicUserRegistered = "user.registered"
	topicUserActivated  = "user.activated"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

var _ port.EventPublisher = (*EventPublisher)(nil)

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   any               `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// PublishUserRegistered emits the post-commit registration event.
func (p *EventPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	return p.publish(ctx, event.EventID, topicUserRegistered, event.UserID, event.RegisteredAt, event)
}

// PublishUserActivated emits the activation event after OTP verification.
func (p *EventPublisher) PublishUserActivated(ctx context.Context, event domain.UserActivatedEvent) error {
	return p.publish(ctx, event.EventID, topicUserActivated, event.UserID, event.ActivatedAt, event)
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType string, userID int64, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}

	metadata := map[string]string{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	envelope := eventEnvelope{
		EventID:   eventID,
		EventType: p.producer.TopicName(eventType),
		UserID:    strconv.FormatInt(userID, 10),
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	p.producer.Send(p.producer.TopicName(eventType), envelope.UserID, bytes)

	p.logger.Debug("event published",
		zap.String("event_type", envelope.EventType),
		zap.String("event_id", envelope.EventID),
	)

	return nil
}
