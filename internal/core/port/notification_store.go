package port

import (
	"context"
	"notification-service/internal/core/domain"

	"github.com/google/uuid"
)

// FindOptions - параметры выборки уведомлений пользователя
type FindOptions struct {
	UnreadOnly bool
	Limit      int
}

// NotificationStorePort - хранилище уведомлений.
// Все операции ограничены userID, чужие записи недоступны
type NotificationStorePort interface {
	Create(ctx context.Context, notification *domain.Notification) error
	// FindByUser возвращает уведомления, отсортированные по created_at по убыванию
	FindByUser(ctx context.Context, userID string, opts FindOptions) ([]domain.Notification, error)
	// MarkRead возвращает false, если уведомление чужое, не найдено или уже прочитано
	MarkRead(ctx context.Context, notificationID uuid.UUID, userID string) (bool, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
}
