package port

import (
	"context"
	"notification-service/internal/core/domain"

	"github.com/google/uuid"
)

// RealtimeNotifierPort - доставка новых уведомлений в открытые соединения пользователя
type RealtimeNotifierPort interface {
	// SendToUser отправляет new_notification и затем актуальный unread_count.
	// Если у пользователя нет соединений, уведомление просто не доставляется
	SendToUser(ctx context.Context, userID string, notification domain.Notification) error
}

// ReadStateNotifierPort - синхронизация флага прочтения между вкладками,
// когда уведомления помечаются прочитанными не через websocket
type ReadStateNotifierPort interface {
	NotifyRead(ctx context.Context, userID string, notificationID uuid.UUID) error
	NotifyAllRead(ctx context.Context, userID string) error
}
