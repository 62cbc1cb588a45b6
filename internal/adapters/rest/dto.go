package rest

import (
	"notification-service/internal/core/domain"
	"time"
)

type NotificationResponse struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	TaskID    *string                `json:"taskId,omitempty"`
	Read      bool                   `json:"read"`
	Metadata  map[string]interface{} `json:"metadata"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

type NotificationsListResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
	Count         int                    `json:"count"`
}

type UnreadCountResponse struct {
	Count int64 `json:"count"`
}

type MarkAsReadResponse struct {
	NotificationID string `json:"notificationId"`
	Updated        bool   `json:"updated"`
}

type MarkAllAsReadResponse struct {
	Updated int64 `json:"updated"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// listNotificationsQuery - параметры GET /api/v1/notifications
type listNotificationsQuery struct {
	UnreadOnly bool
	Limit      int `validate:"gte=0"`
}

func toNotificationResponse(n domain.Notification) NotificationResponse {
	metadata := map[string]interface{}(n.Metadata)
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return NotificationResponse{
		ID:        n.ID.String(),
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		TaskID:    n.TaskID,
		Read:      n.Read,
		Metadata:  metadata,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

func toNotificationsListResponse(notifications []domain.Notification) NotificationsListResponse {
	items := make([]NotificationResponse, 0, len(notifications))
	for _, n := range notifications {
		items = append(items, toNotificationResponse(n))
	}
	return NotificationsListResponse{Notifications: items, Count: len(items)}
}
