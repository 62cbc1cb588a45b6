package rabbitmq_consumer

import (
	"fmt"
	"sync"
	"time"

	"notification-service/pkg/rabbitmq/rabbitmq_common"

	amqp "github.com/rabbitmq/amqp091-go"
)

const defaultResubscribeDelay = 5 * time.Second

// baseConsumer содержит общую логику подключения, канала, QoS и топологии
type baseConsumer struct {
	config          ConsumerConfig
	connection      *amqp.Connection
	channel         *amqp.Channel
	actualQueueName string         // Имя очереди, возвращенное сервером
	wg              sync.WaitGroup // Нужен для graceful shutdown
	connManager     *rabbitmq_common.ConnectionManager
	mu              sync.Mutex // Защищает connection и channel при переподписке

	// subscribe открывает сессию потребления; в тестах подменяется
	subscribe func() (<-chan amqp.Delivery, <-chan *amqp.Error, error)

	Logger rabbitmq_common.Logger
}

// ConsumerConfig конфигурация для потребителя
type ConsumerConfig struct {
	rabbitmq_common.Config
	// Настройки очереди
	QueueName       string // Имя очереди для потребления (если пусто, имя будет сгенерировано сервером)
	DeclareQueue    bool   // Пытаться ли объявить очередь
	DurableQueue    bool
	ExclusiveQueue  bool
	AutoDeleteQueue bool
	QueueArgs       amqp.Table
	// Настройки обменника, к которому привязывается очередь
	ExchangeNameForBind    string
	DeclareExchangeForBind bool
	ExchangeTypeForBind    string
	DurableExchangeForBind bool
	ExchangeArgsForBind    amqp.Table
	// Очередь привязывается к обменнику по каждому из ключей
	RoutingKeysForBind []string
	BindingArgs        amqp.Table
	// Настройки QoS
	PrefetchCount int // 0 или меньше - без ограничений
	PrefetchSize  int
	QosGlobal     bool
	// Настройки потребителя
	ConsumerTag       string
	ExclusiveConsumer bool

	// Сколько воркеров читают из очереди; каждый обрабатывает по одному сообщению
	Workers int
	// Nack с requeue=true при ошибке обработчика. Лимита попыток нет
	RequeueOnError bool
	// Таймаут на Ack/Nack; по истечении возвращается ErrAckTimeout
	AckTimeout time.Duration
	// Таймаут на один вызов обработчика (0 - без ограничения)
	HandlerTimeout time.Duration
	// Пауза перед повторной подпиской после потери канала или соединения
	ResubscribeDelay time.Duration

	Logger rabbitmq_common.Logger
}

func (cfg *ConsumerConfig) validate() error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid base config: %w", err)
	}
	if !cfg.DeclareQueue && cfg.QueueName == "" {
		return fmt.Errorf("queue name is required if DeclareQueue is false")
	}
	if cfg.ExchangeNameForBind != "" && cfg.ExchangeTypeForBind == "" && cfg.DeclareExchangeForBind {
		return fmt.Errorf("exchange type is required if declaring an exchange for binding")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ResubscribeDelay <= 0 {
		cfg.ResubscribeDelay = defaultResubscribeDelay
	}
	return nil
}

func newBaseConsumer(cfg ConsumerConfig, connManager *rabbitmq_common.ConnectionManager) (*baseConsumer, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = rabbitmq_common.NewNoopLogger()
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("base Consumer: %w", err)
	}
	if connManager == nil {
		return nil, fmt.Errorf("base Consumer: connection manager is required")
	}

	c := &baseConsumer{
		config:      cfg,
		connManager: connManager,
		Logger:      logger,
	}
	c.subscribe = c.consume

	conn, ch, err := connManager.GetChannel()
	if err != nil {
		return nil, fmt.Errorf("base Consumer: failed to get channel from manager: %w", err)
	}
	c.connection = conn // Сохраняем ссылку для NotifyClose
	c.channel = ch
	c.Logger.Debug("Channel obtained from ConnectionManager")

	if err := c.setupTopology(); err != nil {
		_ = c.channel.Close()
		return nil, fmt.Errorf("base Consumer: initial setup failed: %w", err)
	}

	return c, nil
}

// setupTopology настраивает QoS, очередь, обменник и привязки
func (c *baseConsumer) setupTopology() error {
	if c.config.PrefetchCount > 0 || c.config.PrefetchSize > 0 {
		c.Logger.Debug("Setting QoS",
			"prefetch_count", c.config.PrefetchCount,
			"prefetch_size", c.config.PrefetchSize,
			"global", c.config.QosGlobal,
		)
		if err := c.channel.Qos(c.config.PrefetchCount, c.config.PrefetchSize, c.config.QosGlobal); err != nil {
			return fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	c.actualQueueName = c.config.QueueName
	if c.config.DeclareQueue {
		c.Logger.Debug("Declaring queue",
			"name", c.config.QueueName,
			"durable", c.config.DurableQueue,
			"exclusive", c.config.ExclusiveQueue,
			"autoDelete", c.config.AutoDeleteQueue,
		)
		q, err := c.channel.QueueDeclare(
			c.config.QueueName,
			c.config.DurableQueue,
			c.config.AutoDeleteQueue,
			c.config.ExclusiveQueue,
			false, // no-wait
			c.config.QueueArgs,
		)
		if err != nil {
			return fmt.Errorf("failed to declare queue '%s': %w", c.config.QueueName, err)
		}
		c.actualQueueName = q.Name
	}

	if c.config.DeclareExchangeForBind {
		c.Logger.Debug("Declaring exchange",
			"name", c.config.ExchangeNameForBind,
			"type", c.config.ExchangeTypeForBind,
			"durable", c.config.DurableExchangeForBind,
		)
		err := c.channel.ExchangeDeclare(
			c.config.ExchangeNameForBind,
			c.config.ExchangeTypeForBind,
			c.config.DurableExchangeForBind,
			false, // auto-deleted
			false, // internal
			false, // no-wait
			c.config.ExchangeArgsForBind,
		)
		if err != nil {
			return fmt.Errorf("failed to declare exchange '%s' for binding: %w", c.config.ExchangeNameForBind, err)
		}
	}

	if c.config.ExchangeNameForBind != "" {
		keys := c.config.RoutingKeysForBind
		if len(keys) == 0 {
			keys = []string{""}
		}
		for _, key := range keys {
			c.Logger.Debug("Binding queue to exchange",
				"queue_name", c.actualQueueName,
				"exchange_name", c.config.ExchangeNameForBind,
				"routing_key", key,
			)
			err := c.channel.QueueBind(c.actualQueueName, key, c.config.ExchangeNameForBind, false, c.config.BindingArgs)
			if err != nil {
				return fmt.Errorf("failed to bind queue '%s' to exchange '%s' with key '%s': %w",
					c.actualQueueName, c.config.ExchangeNameForBind, key, err)
			}
		}
	}

	c.Logger.Debug("Setup complete", "queue", c.actualQueueName)
	return nil
}

// consume регистрирует потребителя на текущем канале. Если канал потерян,
// берет новый у ConnectionManager и заново объявляет топологию.
// Возвращает поток сообщений и уведомление о закрытии канала
func (c *baseConsumer) consume() (<-chan amqp.Delivery, <-chan *amqp.Error, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel == nil || c.channel.IsClosed() {
		if c.connManager == nil {
			return nil, nil, fmt.Errorf("connection manager is not set")
		}
		conn, ch, err := c.connManager.GetChannel()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get channel from manager: %w", err)
		}
		if c.channel != nil {
			_ = c.channel.Close()
		}
		c.connection = conn
		c.channel = ch
		if err := c.setupTopology(); err != nil {
			_ = ch.Close()
			c.channel = nil
			return nil, nil, fmt.Errorf("topology setup failed: %w", err)
		}
		c.Logger.Info("Channel re-established", "queue", c.actualQueueName)
	}

	// Закрытие соединения тоже закрывает канал, поэтому достаточно канала
	notifyClose := c.channel.NotifyClose(make(chan *amqp.Error, 1))

	msgs, err := c.channel.Consume(
		c.actualQueueName,
		c.config.ConsumerTag,
		false, // auto-ack
		c.config.ExclusiveConsumer,
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to register a consumer on queue '%s': %w", c.actualQueueName, err)
	}
	return msgs, notifyClose, nil
}

// Close дожидается обработчиков и закрывает канал потребителя.
// Соединение принадлежит ConnectionManager и здесь не закрывается
func (c *baseConsumer) Close() error {
	c.Logger.Debug("Waiting for message handlers to finish...")
	c.wg.Wait()
	c.Logger.Debug("All message handlers finished")

	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil && err != amqp.ErrClosed {
			c.Logger.Error(err, "Error closing channel")
			firstErr = err
		}
		c.channel = nil
	}

	c.Logger.Info("Consumer closed")
	return firstErr
}
