package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType - перечисление типов уведомлений
type NotificationType string

const (
	NotificationTaskAssigned      NotificationType = "TASK_ASSIGNED"
	NotificationTaskStatusChanged NotificationType = "TASK_STATUS_CHANGED"
	NotificationTaskComment       NotificationType = "TASK_COMMENT"
	NotificationTaskCreated       NotificationType = "TASK_CREATED"
	NotificationTaskUpdated       NotificationType = "TASK_UPDATED"
)

// IsValid проверяет, что тип входит в перечисление
func (t NotificationType) IsValid() bool {
	switch t {
	case NotificationTaskAssigned, NotificationTaskStatusChanged, NotificationTaskComment,
		NotificationTaskCreated, NotificationTaskUpdated:
		return true
	}
	return false
}

// Metadata - набор дополнительных данных, зависящий от типа уведомления
type Metadata map[string]interface{}

// Notification - уведомление для одного получателя.
// Флаг Read меняется только с false на true
type Notification struct {
	ID        uuid.UUID        `json:"id"`
	UserID    string           `json:"userId"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	TaskID    *string          `json:"taskId,omitempty"`
	Read      bool             `json:"read"`
	Metadata  Metadata         `json:"metadata"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// NewNotification - конструктор непрочитанного уведомления
func NewNotification(userID string, notificationType NotificationType, title, message, taskID string, metadata Metadata) *Notification {
	now := time.Now().UTC()
	if metadata == nil {
		metadata = make(Metadata)
	}

	n := &Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      notificationType,
		Title:     title,
		Message:   message,
		Read:      false,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if taskID != "" {
		n.TaskID = &taskID
	}
	return n
}
