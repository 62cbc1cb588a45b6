package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"notification-service/internal/constants"
	"notification-service/internal/contextkeys"
	"notification-service/internal/contracts"
	"notification-service/internal/core/domain"
	"notification-service/internal/core/port"
	"notification-service/internal/core/port/usecases_port"
	"notification-service/pkg/rabbitmq/rabbitmq_common"
	"notification-service/pkg/rabbitmq/rabbitmq_consumer"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// TaskEventConsumerAdapter - входящий адаптер: слушает очередь событий задач
// и передает каждое событие в use case. Сообщение подтверждается только
// после того, как все уведомления сохранены и отправлены
type TaskEventConsumerAdapter struct {
	consumer rabbitmq_consumer.Consumer
	useCase  usecases_port.ProcessTaskEventUseCasePort
	logger   port.LoggerPort
}

var _ port.EventListenerPort = (*TaskEventConsumerAdapter)(nil)

func NewTaskEventConsumerAdapter(
	consumerCfg rabbitmq_consumer.ConsumerConfig,
	useCase usecases_port.ProcessTaskEventUseCasePort,
	logger port.LoggerPort,
	connManager *rabbitmq_common.ConnectionManager,
) (*TaskEventConsumerAdapter, error) {
	adapter := &TaskEventConsumerAdapter{
		useCase: useCase,
		logger:  logger.WithFields(port.Fields{"adapter_name": "TaskEventConsumerAdapter"}),
	}

	pkgLogger := logger.WithFields(port.Fields{"component": "rabbitmq_distributing_consumer", "consumer_tag": consumerCfg.ConsumerTag})
	consumerCfg.Logger = NewPkgLoggerBridge(pkgLogger)

	consumer, err := rabbitmq_consumer.NewDistributingConsumer(consumerCfg, adapter.handleMessage, connManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ consumer for task events: %w", err)
	}
	adapter.consumer = consumer

	return adapter, nil
}

// handleMessage - обработчик одного сообщения. Любая ошибка приводит к nack с возвратом в очередь
func (a *TaskEventConsumerAdapter) handleMessage(ctx context.Context, d amqp.Delivery) error {
	headerTraceID, _ := d.Headers[constants.HeaderTraceID].(string)
	ctx, traceID := contextkeys.EnsureTraceID(ctx, headerTraceID)

	msgLogger := a.logger.WithFields(port.Fields{
		"trace_id":     traceID,
		"routing_key":  d.RoutingKey,
		"message_id":   d.MessageId,
		"delivery_tag": d.DeliveryTag,
		"redelivered":  d.Redelivered,
	})
	ctx = contextkeys.ContextWithLogger(ctx, msgLogger)

	event, err := decodeTaskEvent(d.Body, d.RoutingKey, time.Now().UTC())
	if err != nil {
		msgLogger.Error("Failed to decode task event, message will be requeued", err, nil)
		return err
	}

	msgLogger.Info("Task event received", port.Fields{"event_type": event.EventType, "task_id": event.TaskID})

	notifications, err := a.useCase.Execute(ctx, event)
	if err != nil {
		msgLogger.Error("Failed to process task event, message will be requeued", err, nil)
		return err
	}

	msgLogger.Info("Task event processed", port.Fields{"notifications": len(notifications)})
	return nil
}

// decodeTaskEvent проверяет тело по схеме и переводит его в доменное событие.
// Пустой eventType берется из ключа маршрутизации, пустой timestamp - время получения
func decodeTaskEvent(body []byte, routingKey string, receivedAt time.Time) (domain.TaskEvent, error) {
	if err := contracts.ValidateTaskEvent(body); err != nil {
		return domain.TaskEvent{}, fmt.Errorf("%w: %v", domain.ErrInvalidEvent, err)
	}

	var dto TaskEventDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return domain.TaskEvent{}, fmt.Errorf("%w: failed to unmarshal task event: %v", domain.ErrInvalidEvent, err)
	}

	event := toDomainTaskEvent(dto)
	if event.EventType == "" {
		event.EventType = domain.TaskEventType(routingKey)
	}
	if !event.EventType.IsValid() {
		return domain.TaskEvent{}, fmt.Errorf("%w: %q", domain.ErrUnknownEventType, event.EventType)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = receivedAt
	}
	return event, nil
}

// Start реализует EventListenerPort и блокируется до остановки потребителя
func (a *TaskEventConsumerAdapter) Start(ctx context.Context) error {
	return a.consumer.StartConsuming(ctx)
}

func (a *TaskEventConsumerAdapter) Close() error {
	return a.consumer.Close()
}
