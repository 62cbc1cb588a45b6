package rabbitmq_consumer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"notification-service/pkg/rabbitmq/rabbitmq_common"

	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageHandler обрабатывает одно сообщение.
// Пакет сам решает, делать ack или nack, по возвращенной ошибке
type MessageHandler func(ctx context.Context, delivery amqp.Delivery) error

// Consumer - контракт, который используют адаптеры сервисов
type Consumer interface {
	StartConsuming(ctx context.Context) error
	Close() error
}

// DistributingConsumer раздает сообщения фиксированному числу воркеров.
// Каждый воркер обрабатывает сообщения строго по одному
type DistributingConsumer struct {
	baseConsumer *baseConsumer
	handler      MessageHandler
}

var _ Consumer = (*DistributingConsumer)(nil)

// NewDistributingConsumer создает нового потребителя
func NewDistributingConsumer(cfg ConsumerConfig, handler MessageHandler, connManager *rabbitmq_common.ConnectionManager) (*DistributingConsumer, error) {
	if handler == nil {
		return nil, fmt.Errorf("distributing Consumer: message handler is required")
	}

	bc, err := newBaseConsumer(cfg, connManager)
	if err != nil {
		return nil, fmt.Errorf("distributing Consumer: %w", err)
	}

	return &DistributingConsumer{
		baseConsumer: bc,
		handler:      handler,
	}, nil
}

// StartConsuming регистрирует потребителя и блокируется до отмены контекста.
// При потере канала или соединения подписка восстанавливается через
// ResubscribeDelay; ошибки брокера наружу не возвращаются
func (c *DistributingConsumer) StartConsuming(ctx context.Context) error {
	bc := c.baseConsumer
	if bc.subscribe == nil {
		return fmt.Errorf("distributing Consumer: not initialized, use NewDistributingConsumer")
	}

	for {
		msgs, notifyClose, err := bc.subscribe()
		if err != nil {
			bc.Logger.Error(err, "Failed to subscribe, will retry",
				"consumer_tag", bc.config.ConsumerTag,
				"retry_in", bc.config.ResubscribeDelay.String())
		} else {
			bc.Logger.Info("[*] Waiting for messages on queue",
				"queue_name", bc.actualQueueName,
				"workers", bc.config.Workers)
			if stopped := c.runSession(ctx, msgs, notifyClose); stopped {
				bc.Logger.Info("Context cancelled. Shutting down consumer.", "consumer_tag", bc.config.ConsumerTag)
				return nil
			}
			bc.Logger.Warn("Consumer session ended, resubscribing",
				"consumer_tag", bc.config.ConsumerTag,
				"retry_in", bc.config.ResubscribeDelay.String())
		}

		timer := time.NewTimer(bc.config.ResubscribeDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			bc.Logger.Info("Context cancelled. Shutting down consumer.", "consumer_tag", bc.config.ConsumerTag)
			return nil
		case <-timer.C:
		}
	}
}

// runSession обслуживает одну подписку: запускает воркеров и ждет, пока
// контекст отменят, брокер закроет канал или поток сообщений иссякнет.
// Возвращает true, если сессия завершилась из-за отмены контекста
func (c *DistributingConsumer) runSession(ctx context.Context, msgs <-chan amqp.Delivery, notifyClose <-chan *amqp.Error) bool {
	bc := c.baseConsumer

	var session sync.WaitGroup
	for i := 0; i < bc.config.Workers; i++ {
		bc.wg.Add(1)
		session.Add(1)
		go func(workerID int) {
			defer bc.wg.Done()
			defer session.Done()
			c.worker(ctx, workerID, msgs)
		}(i)
	}

	drained := make(chan struct{})
	go func() {
		session.Wait()
		close(drained)
	}()

	select {
	case <-ctx.Done():
		// Воркеры тоже увидят ctx.Done()
		return true
	case <-drained:
		bc.Logger.Warn("Deliveries channel closed", "consumer_tag", bc.config.ConsumerTag)
		return ctx.Err() != nil
	case amqpErr, ok := <-notifyClose:
		if ok && amqpErr != nil {
			bc.Logger.Error(amqpErr, "Channel closed by broker", "consumer_tag", bc.config.ConsumerTag)
		} else {
			bc.Logger.Warn("Channel closed", "consumer_tag", bc.config.ConsumerTag)
		}
	}

	// После закрытия канала библиотека закрывает и поток сообщений
	select {
	case <-drained:
		return ctx.Err() != nil
	case <-ctx.Done():
		return true
	}
}

func (c *DistributingConsumer) worker(ctx context.Context, workerID int, msgs <-chan amqp.Delivery) {
	logger := c.baseConsumer.Logger
	for {
		// Приоритетная проверка: не берем новое сообщение после команды на остановку
		select {
		case <-ctx.Done():
			logger.Debug("Worker stopped", "worker_id", workerID)
			return
		default:
		}

		select {
		case <-ctx.Done():
			logger.Debug("Worker stopped", "worker_id", workerID)
			return
		case d, ok := <-msgs:
			if !ok {
				logger.Info("Deliveries channel closed by RabbitMQ. Worker exiting.", "worker_id", workerID)
				return
			}
			// Уже начатое сообщение доводим до конца даже при остановке
			_ = c.processDelivery(context.WithoutCancel(ctx), d)
		}
	}
}

// processDelivery вызывает обработчик и подтверждает сообщение только после
// того, как обработчик завершился без ошибки
func (c *DistributingConsumer) processDelivery(ctx context.Context, d amqp.Delivery) error {
	bc := c.baseConsumer

	handlerCtx := ctx
	if bc.config.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		handlerCtx, cancel = context.WithTimeout(ctx, bc.config.HandlerTimeout)
		defer cancel()
	}

	bc.Logger.Debug("[->] Started processing message",
		"consumer_tag", bc.config.ConsumerTag,
		"delivery_tag", d.DeliveryTag,
		"routing_key", d.RoutingKey,
		"redelivered", d.Redelivered)

	processErr := c.handler(handlerCtx, d)
	if processErr == nil {
		if err := settle(bc.config.AckTimeout, func() error { return d.Ack(false) }); err != nil {
			bc.Logger.Error(err, "Failed to ack message", "delivery_tag", d.DeliveryTag)
			return err
		}
		bc.Logger.Debug("[+] Message Ack'd", "consumer_tag", bc.config.ConsumerTag, "delivery_tag", d.DeliveryTag)
		return nil
	}

	requeue := bc.config.RequeueOnError
	bc.Logger.Error(processErr, "Handler error for message",
		"consumer_tag", bc.config.ConsumerTag,
		"delivery_tag", d.DeliveryTag,
		"requeue", requeue)

	if err := settle(bc.config.AckTimeout, func() error { return d.Nack(false, requeue) }); err != nil {
		bc.Logger.Error(err, "Failed to nack message", "delivery_tag", d.DeliveryTag)
		return err
	}
	return nil
}

// Close закрывает канал потребителя после завершения воркеров
func (c *DistributingConsumer) Close() error {
	c.baseConsumer.Logger.Info("Closing consumer")
	return c.baseConsumer.Close()
}
