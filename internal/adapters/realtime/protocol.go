package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"notification-service/internal/core/domain"

	"github.com/go-playground/validator/v10"
)

// Команды клиента
const (
	EventAuthenticate     = "authenticate"
	EventGetNotifications = "get_notifications"
	EventMarkAsRead       = "mark_as_read"
	EventMarkAllAsRead    = "mark_all_as_read"
	EventSubscribe        = "subscribe"
	EventUnsubscribe      = "unsubscribe"
)

// События сервера
const (
	EventAuthenticated        = "authenticated"
	EventNotifications        = "notifications"
	EventNotificationRead     = "notification_read"
	EventAllNotificationsRead = "all_notifications_read"
	EventUnreadCount          = "unread_count"
	EventNewNotification      = "new_notification"
	EventSubscribed           = "subscribed"
	EventUnsubscribed         = "unsubscribed"
	EventError                = "error"
)

// Envelope - каждый кадр в обе стороны: {"event": "...", "data": {...}}
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type inboundMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type authenticatePayload struct {
	UserID string `json:"userId" validate:"required"`
}

type getNotificationsPayload struct {
	UnreadOnly bool `json:"unreadOnly"`
	Limit      int  `json:"limit" validate:"gte=0"`
}

type markAsReadPayload struct {
	NotificationID string `json:"notificationId" validate:"required,uuid"`
}

type channelPayload struct {
	Channel string `json:"channel" validate:"required,max=128,printascii"`
}

type authenticatedData struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId"`
}

type notificationsData struct {
	Notifications []domain.Notification `json:"notifications"`
}

type notificationReadData struct {
	NotificationID string `json:"notificationId"`
}

type allNotificationsReadData struct {
	Count int64 `json:"count"`
}

type unreadCountData struct {
	Count int64 `json:"count"`
}

type channelData struct {
	Channel string `json:"channel"`
}

type errorData struct {
	Message string `json:"message"`
}

func encodeEnvelope(event string, data interface{}) ([]byte, error) {
	msg, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s envelope: %w", event, err)
	}
	return msg, nil
}

// decodePayload разбирает data команды и проверяет теги validate.
// Отсутствующий data равносилен пустому объекту
func decodePayload(raw json.RawMessage, dst interface{}, validate *validator.Validate) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, dst); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
		}
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	return nil
}
