package usecase

import (
	"fmt"
	"notification-service/internal/core/domain"
)

// commentPreviewLength - сколько символов комментария попадает в metadata
const commentPreviewLength = 100

// BuildNotifications превращает событие в уведомления для получателей.
//
// Правила исключения различаются по типу события:
//   - task.created и task.assigned уведомляют assignedTo без проверки на автора;
//   - task.status_changed уведомляет всех participants, автора исключает издатель;
//   - task.comment исключает только commentAuthor;
//   - task.updated исключает userId.
//
// Пустой результат без ошибки - штатная ситуация.
func BuildNotifications(event domain.TaskEvent) ([]*domain.Notification, error) {
	switch event.EventType {
	case domain.EventTaskCreated:
		if event.AssignedTo == "" {
			return nil, nil
		}
		return []*domain.Notification{
			domain.NewNotification(
				event.AssignedTo,
				domain.NotificationTaskCreated,
				"New task assigned",
				fmt.Sprintf("You have been assigned to new task %q", event.TaskTitle),
				event.TaskID,
				domain.Metadata{"createdBy": event.UserID},
			),
		}, nil

	case domain.EventTaskAssigned:
		if event.AssignedTo == "" {
			return nil, nil
		}
		return []*domain.Notification{
			domain.NewNotification(
				event.AssignedTo,
				domain.NotificationTaskAssigned,
				"Task assigned",
				fmt.Sprintf("You have been assigned to task %q", event.TaskTitle),
				event.TaskID,
				domain.Metadata{"assignedBy": event.UserID},
			),
		}, nil

	case domain.EventTaskStatusChanged:
		message := fmt.Sprintf("Task %q moved from %s to %s", event.TaskTitle, event.PreviousStatus, event.NewStatus)
		return forEachRecipient(event.Participants, "", func(userID string) *domain.Notification {
			return domain.NewNotification(
				userID,
				domain.NotificationTaskStatusChanged,
				"Task status changed",
				message,
				event.TaskID,
				domain.Metadata{
					"previousStatus": event.PreviousStatus,
					"newStatus":      event.NewStatus,
					"changedBy":      event.UserID,
				},
			)
		}), nil

	case domain.EventTaskComment:
		message := fmt.Sprintf("%s commented on task %q", event.CommentAuthor, event.TaskTitle)
		preview := truncateRunes(event.CommentText, commentPreviewLength)
		return forEachRecipient(event.Participants, event.CommentAuthor, func(userID string) *domain.Notification {
			return domain.NewNotification(
				userID,
				domain.NotificationTaskComment,
				"New comment",
				message,
				event.TaskID,
				domain.Metadata{
					"commentAuthor":  event.CommentAuthor,
					"commentPreview": preview,
				},
			)
		}), nil

	case domain.EventTaskUpdated:
		message := fmt.Sprintf("Task %q has been updated", event.TaskTitle)
		return forEachRecipient(event.Participants, event.UserID, func(userID string) *domain.Notification {
			return domain.NewNotification(
				userID,
				domain.NotificationTaskUpdated,
				"Task updated",
				message,
				event.TaskID,
				domain.Metadata{"updatedBy": event.UserID},
			)
		}), nil
	}

	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownEventType, event.EventType)
}

// forEachRecipient строит уведомление для каждого участника, кроме excluded.
// Пустой excluded означает, что исключать никого не нужно
func forEachRecipient(participants []string, excluded string, build func(userID string) *domain.Notification) []*domain.Notification {
	notifications := make([]*domain.Notification, 0, len(participants))
	for _, userID := range participants {
		if excluded != "" && userID == excluded {
			continue
		}
		notifications = append(notifications, build(userID))
	}
	return notifications
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
