package port

import "context"

// EventListenerPort - входящий адаптер брокера.
// Start блокируется до отмены ctx, Close дожидается обработки взятых сообщений
type EventListenerPort interface {
	Start(ctx context.Context) error
	Close() error
}
