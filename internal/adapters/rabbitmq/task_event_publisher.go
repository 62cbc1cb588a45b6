package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"notification-service/internal/constants"
	"notification-service/internal/contextkeys"
	"notification-service/internal/core/domain"
	"notification-service/internal/core/port"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 10 * time.Second

// MessagePublisher - то, что нужно адаптеру от pkg/rabbitmq_producer
type MessagePublisher interface {
	Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error
	Close() error
}

// TaskEventPublisherAdapter публикует события задач в обменник с ключом,
// равным имени события
type TaskEventPublisherAdapter struct {
	publisher MessagePublisher
}

var _ port.TaskEventPublisherPort = (*TaskEventPublisherAdapter)(nil)

func NewTaskEventPublisherAdapter(publisher MessagePublisher) (*TaskEventPublisherAdapter, error) {
	if publisher == nil {
		return nil, fmt.Errorf("publisher cannot be nil")
	}
	return &TaskEventPublisherAdapter{publisher: publisher}, nil
}

func (a *TaskEventPublisherAdapter) PublishTaskEvent(ctx context.Context, event domain.TaskEvent) error {
	if !event.EventType.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownEventType, event.EventType)
	}

	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component":  "TaskEventPublisherAdapter",
		"event_type": event.EventType,
		"task_id":    event.TaskID,
	})

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	body, err := json.Marshal(fromDomainTaskEvent(event))
	if err != nil {
		return fmt.Errorf("failed to marshal task event: %w", err)
	}

	ctx, traceID := contextkeys.EnsureTraceID(ctx, "")

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.New().String(),
		Timestamp:    event.Timestamp,
		Type:         string(event.EventType),
		Headers:      amqp.Table{constants.HeaderTraceID: traceID},
		Body:         body,
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := a.publisher.Publish(publishCtx, string(event.EventType), msg); err != nil {
		logger.Error("Failed to publish task event", err, nil)
		return fmt.Errorf("failed to publish task event: %w", err)
	}

	logger.Info("Task event published", port.Fields{"trace_id": traceID, "message_id": msg.MessageId})
	return nil
}

func (a *TaskEventPublisherAdapter) Close() error {
	return a.publisher.Close()
}
