package rabbitmq_consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"notification-service/pkg/rabbitmq/rabbitmq_common"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAcknowledger struct {
	mu       sync.Mutex
	acked    []uint64
	nacked   []uint64
	requeued []bool
	delay    time.Duration
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, tag)
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacked = append(f.nacked, tag)
	f.requeued = append(f.requeued, requeue)
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func newTestConsumer(cfg ConsumerConfig, handler MessageHandler) *DistributingConsumer {
	return &DistributingConsumer{
		baseConsumer: &baseConsumer{config: cfg, Logger: rabbitmq_common.NewNoopLogger()},
		handler:      handler,
	}
}

func TestProcessDelivery(t *testing.T) {
	t.Run("acks after successful handler", func(t *testing.T) {
		ack := &fakeAcknowledger{}
		handled := false
		c := newTestConsumer(ConsumerConfig{RequeueOnError: true}, func(ctx context.Context, d amqp.Delivery) error {
			handled = true
			assert.Empty(t, ack.acked, "ack must not happen before the handler returns")
			return nil
		})

		err := c.processDelivery(context.Background(), amqp.Delivery{Acknowledger: ack, DeliveryTag: 7})
		require.NoError(t, err)

		assert.True(t, handled)
		assert.Equal(t, []uint64{7}, ack.acked)
		assert.Empty(t, ack.nacked)
	})

	t.Run("nacks with requeue on handler error", func(t *testing.T) {
		ack := &fakeAcknowledger{}
		c := newTestConsumer(ConsumerConfig{RequeueOnError: true}, func(ctx context.Context, d amqp.Delivery) error {
			return errors.New("store unavailable")
		})

		err := c.processDelivery(context.Background(), amqp.Delivery{Acknowledger: ack, DeliveryTag: 3})
		require.NoError(t, err)

		assert.Empty(t, ack.acked)
		assert.Equal(t, []uint64{3}, ack.nacked)
		assert.Equal(t, []bool{true}, ack.requeued)
	})

	t.Run("nacks without requeue when disabled", func(t *testing.T) {
		ack := &fakeAcknowledger{}
		c := newTestConsumer(ConsumerConfig{RequeueOnError: false}, func(ctx context.Context, d amqp.Delivery) error {
			return errors.New("boom")
		})

		require.NoError(t, c.processDelivery(context.Background(), amqp.Delivery{Acknowledger: ack, DeliveryTag: 1}))
		assert.Equal(t, []bool{false}, ack.requeued)
	})

	t.Run("ack timeout surfaces typed error", func(t *testing.T) {
		ack := &fakeAcknowledger{delay: 200 * time.Millisecond}
		c := newTestConsumer(ConsumerConfig{AckTimeout: 10 * time.Millisecond}, func(ctx context.Context, d amqp.Delivery) error {
			return nil
		})

		err := c.processDelivery(context.Background(), amqp.Delivery{Acknowledger: ack, DeliveryTag: 9})
		assert.ErrorIs(t, err, ErrAckTimeout)
	})

	t.Run("handler timeout bounds handler context", func(t *testing.T) {
		ack := &fakeAcknowledger{}
		c := newTestConsumer(ConsumerConfig{HandlerTimeout: 20 * time.Millisecond, RequeueOnError: true}, func(ctx context.Context, d amqp.Delivery) error {
			<-ctx.Done()
			return ctx.Err()
		})

		require.NoError(t, c.processDelivery(context.Background(), amqp.Delivery{Acknowledger: ack, DeliveryTag: 5}))
		assert.Equal(t, []uint64{5}, ack.nacked)
	})
}

func TestWorkerProcessesSequentially(t *testing.T) {
	ack := &fakeAcknowledger{}
	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0

	c := newTestConsumer(ConsumerConfig{Workers: 1}, func(ctx context.Context, d amqp.Delivery) error {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil
	})

	msgs := make(chan amqp.Delivery, 5)
	for i := uint64(1); i <= 5; i++ {
		msgs <- amqp.Delivery{Acknowledger: ack, DeliveryTag: i}
	}
	close(msgs)

	c.worker(context.Background(), 0, msgs)

	assert.Equal(t, 1, maxInFlight)
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, ack.acked)
}

func TestConsumerConfigValidate(t *testing.T) {
	cfg := ConsumerConfig{Config: rabbitmq_common.Config{URL: "amqp://localhost"}, QueueName: "q"}
	require.NoError(t, cfg.validate())
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, defaultResubscribeDelay, cfg.ResubscribeDelay)

	missingQueue := ConsumerConfig{Config: rabbitmq_common.Config{URL: "amqp://localhost"}}
	assert.Error(t, missingQueue.validate())

	missingType := ConsumerConfig{
		Config:                 rabbitmq_common.Config{URL: "amqp://localhost"},
		QueueName:              "q",
		ExchangeNameForBind:    "ex",
		DeclareExchangeForBind: true,
	}
	assert.Error(t, missingType.validate())
}

func TestStartConsuming_ResubscribesAfterDeliveriesClosed(t *testing.T) {
	ack := &fakeAcknowledger{}
	handled := make(chan uint64, 4)
	c := newTestConsumer(ConsumerConfig{Workers: 2, ResubscribeDelay: 10 * time.Millisecond}, func(ctx context.Context, d amqp.Delivery) error {
		handled <- d.DeliveryTag
		return nil
	})

	var mu sync.Mutex
	sessions := 0
	c.baseConsumer.subscribe = func() (<-chan amqp.Delivery, <-chan *amqp.Error, error) {
		mu.Lock()
		defer mu.Unlock()
		sessions++

		msgs := make(chan amqp.Delivery, 1)
		switch sessions {
		case 1:
			// канал потерян сразу после подписки
			msgs <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1}
			close(msgs)
		case 2:
			return nil, nil, errors.New("channel not available yet")
		default:
			msgs <- amqp.Delivery{Acknowledger: ack, DeliveryTag: uint64(sessions)}
		}
		return msgs, nil, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.StartConsuming(ctx) }()

	assert.Equal(t, uint64(1), <-handled)
	select {
	case tag := <-handled:
		assert.Equal(t, uint64(3), tag)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not resubscribe after deliveries channel closed")
	}

	mu.Lock()
	assert.Equal(t, 3, sessions)
	mu.Unlock()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("StartConsuming did not return after cancel")
	}
	require.NoError(t, c.Close())
}

func TestStartConsuming_ResubscribesAfterChannelClosed(t *testing.T) {
	c := newTestConsumer(ConsumerConfig{Workers: 1, ResubscribeDelay: 10 * time.Millisecond}, func(ctx context.Context, d amqp.Delivery) error {
		return nil
	})

	var mu sync.Mutex
	sessions := 0
	c.baseConsumer.subscribe = func() (<-chan amqp.Delivery, <-chan *amqp.Error, error) {
		mu.Lock()
		defer mu.Unlock()
		sessions++

		msgs := make(chan amqp.Delivery)
		closed := make(chan *amqp.Error, 1)
		if sessions == 1 {
			closed <- &amqp.Error{Code: amqp.ChannelError, Reason: "channel closed"}
			close(msgs)
		}
		return msgs, closed, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.StartConsuming(ctx) }()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return sessions >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("StartConsuming did not return after cancel")
	}
}
