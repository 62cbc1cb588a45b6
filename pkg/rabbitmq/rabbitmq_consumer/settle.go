package rabbitmq_consumer

import (
	"errors"
	"time"
)

// ErrAckTimeout возвращается, если брокер не принял Ack/Nack за отведенное время.
// Ошибка повторяемая: неподтвержденное сообщение брокер отдаст снова
var ErrAckTimeout = errors.New("rabbitmq consumer: acknowledgement timed out")

// settle выполняет Ack/Nack с ограничением по времени
func settle(timeout time.Duration, op func() error) error {
	if timeout <= 0 {
		return op()
	}

	done := make(chan error, 1)
	go func() { done <- op() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return ErrAckTimeout
	}
}
