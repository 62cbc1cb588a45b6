package usecase

import (
	"context"
	"fmt"
	"notification-service/internal/contextkeys"
	"notification-service/internal/core/domain"
	"notification-service/internal/core/port"
)

// ProcessTaskEventUseCase превращает событие задачи в уведомления,
// сохраняет их и отправляет в открытые соединения получателей
type ProcessTaskEventUseCase struct {
	store    port.NotificationStorePort
	notifier port.RealtimeNotifierPort
}

func NewProcessTaskEventUseCase(store port.NotificationStorePort, notifier port.RealtimeNotifierPort) *ProcessTaskEventUseCase {
	return &ProcessTaskEventUseCase{
		store:    store,
		notifier: notifier,
	}
}

// Execute возвращает ошибку, если не удалось сохранить или доставить хотя бы
// одно уведомление. Вызывающая сторона подтверждает сообщение только при nil
func (uc *ProcessTaskEventUseCase) Execute(ctx context.Context, event domain.TaskEvent) ([]domain.Notification, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	ucLogger := logger.WithFields(port.Fields{
		"use_case":   "ProcessTaskEvent",
		"event_type": event.EventType,
		"task_id":    event.TaskID,
	})

	ucLogger.Info("Use case started", nil)

	notifications, err := BuildNotifications(event)
	if err != nil {
		ucLogger.Error("Failed to map event to notifications", err, nil)
		return nil, err
	}

	if len(notifications) == 0 {
		ucLogger.Info("No recipients for event, nothing to do", nil)
		return []domain.Notification{}, nil
	}

	created := make([]domain.Notification, 0, len(notifications))
	for _, n := range notifications {
		recipientLogger := ucLogger.WithFields(port.Fields{
			"user_id":         n.UserID,
			"notification_id": n.ID.String(),
		})

		if err := uc.store.Create(ctx, n); err != nil {
			recipientLogger.Error("Store failed to create notification", err, nil)
			return nil, fmt.Errorf("failed to create notification for user %s: %w", n.UserID, err)
		}

		if err := uc.notifier.SendToUser(ctx, n.UserID, *n); err != nil {
			recipientLogger.Error("Failed to push notification", err, nil)
			return nil, fmt.Errorf("failed to push notification to user %s: %w", n.UserID, err)
		}

		recipientLogger.Debug("Notification created and pushed", nil)
		created = append(created, *n)
	}

	ucLogger.Info("Use case finished successfully", port.Fields{"notifications_created": len(created)})
	return created, nil
}
