package usecase

import (
	"context"
	"fmt"
	"notification-service/internal/contextkeys"
	"notification-service/internal/core/domain"
	"notification-service/internal/core/port"

	"github.com/google/uuid"
)

const (
	DefaultNotificationsLimit = 50
	MaxNotificationsLimit     = 100
)

// GetNotificationsUseCase - список уведомлений пользователя
type GetNotificationsUseCase struct {
	store port.NotificationStorePort
}

func NewGetNotificationsUseCase(store port.NotificationStorePort) *GetNotificationsUseCase {
	return &GetNotificationsUseCase{store: store}
}

func (uc *GetNotificationsUseCase) Execute(ctx context.Context, userID string, opts port.FindOptions) ([]domain.Notification, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"use_case": "GetNotifications", "user_id": userID})

	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidPayload)
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultNotificationsLimit
	}
	if opts.Limit > MaxNotificationsLimit {
		opts.Limit = MaxNotificationsLimit
	}

	notifications, err := uc.store.FindByUser(ctx, userID, opts)
	if err != nil {
		logger.Error("Store failed to find notifications", err, nil)
		return nil, err
	}

	logger.Debug("Notifications fetched", port.Fields{"count": len(notifications), "unread_only": opts.UnreadOnly})
	return notifications, nil
}

// MarkAsReadUseCase помечает одно уведомление прочитанным.
// Чужое или уже прочитанное уведомление - не ошибка, а false
type MarkAsReadUseCase struct {
	store port.NotificationStorePort
}

func NewMarkAsReadUseCase(store port.NotificationStorePort) *MarkAsReadUseCase {
	return &MarkAsReadUseCase{store: store}
}

func (uc *MarkAsReadUseCase) Execute(ctx context.Context, userID string, notificationID uuid.UUID) (bool, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case":        "MarkAsRead",
		"user_id":         userID,
		"notification_id": notificationID.String(),
	})

	if userID == "" {
		return false, fmt.Errorf("%w: user id is required", domain.ErrInvalidPayload)
	}

	updated, err := uc.store.MarkRead(ctx, notificationID, userID)
	if err != nil {
		logger.Error("Store failed to mark notification as read", err, nil)
		return false, err
	}
	if !updated {
		logger.Debug("Notification not updated: not owned, missing or already read", nil)
	}
	return updated, nil
}

// MarkAllAsReadUseCase помечает прочитанными все уведомления пользователя
type MarkAllAsReadUseCase struct {
	store port.NotificationStorePort
}

func NewMarkAllAsReadUseCase(store port.NotificationStorePort) *MarkAllAsReadUseCase {
	return &MarkAllAsReadUseCase{store: store}
}

func (uc *MarkAllAsReadUseCase) Execute(ctx context.Context, userID string) (int64, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"use_case": "MarkAllAsRead", "user_id": userID})

	if userID == "" {
		return 0, fmt.Errorf("%w: user id is required", domain.ErrInvalidPayload)
	}

	affected, err := uc.store.MarkAllRead(ctx, userID)
	if err != nil {
		logger.Error("Store failed to mark all notifications as read", err, nil)
		return 0, err
	}
	logger.Debug("Notifications marked as read", port.Fields{"affected": affected})
	return affected, nil
}

// GetUnreadCountUseCase - счетчик непрочитанных
type GetUnreadCountUseCase struct {
	store port.NotificationStorePort
}

func NewGetUnreadCountUseCase(store port.NotificationStorePort) *GetUnreadCountUseCase {
	return &GetUnreadCountUseCase{store: store}
}

func (uc *GetUnreadCountUseCase) Execute(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, fmt.Errorf("%w: user id is required", domain.ErrInvalidPayload)
	}

	count, err := uc.store.UnreadCount(ctx, userID)
	if err != nil {
		contextkeys.LoggerFromContext(ctx).Error("Store failed to count unread notifications", err, port.Fields{
			"use_case": "GetUnreadCount",
			"user_id":  userID,
		})
		return 0, err
	}
	return count, nil
}
