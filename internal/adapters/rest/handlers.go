package rest

import (
	"context"
	"net/http"
	"notification-service/internal/contextkeys"
	"notification-service/internal/core/port"
	"notification-service/internal/core/port/usecases_port"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type NotificationHandler struct {
	getNotificationsUC usecases_port.GetNotificationsUseCasePort
	markAsReadUC       usecases_port.MarkAsReadUseCasePort
	markAllAsReadUC    usecases_port.MarkAllAsReadUseCasePort
	unreadCountUC      usecases_port.GetUnreadCountUseCasePort
	readNotifier       port.ReadStateNotifierPort
	validate           *validator.Validate
}

func NewNotificationHandler(
	getNotificationsUC usecases_port.GetNotificationsUseCasePort,
	markAsReadUC usecases_port.MarkAsReadUseCasePort,
	markAllAsReadUC usecases_port.MarkAllAsReadUseCasePort,
	unreadCountUC usecases_port.GetUnreadCountUseCasePort,
	readNotifier port.ReadStateNotifierPort,
) *NotificationHandler {
	return &NotificationHandler{
		getNotificationsUC: getNotificationsUC,
		markAsReadUC:       markAsReadUC,
		markAllAsReadUC:    markAllAsReadUC,
		unreadCountUC:      unreadCountUC,
		readNotifier:       readNotifier,
		validate:           validator.New(),
	}
}

// GetNotifications - GET /api/v1/notifications?unreadOnly=&limit=
func (h *NotificationHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "GetNotifications"})

	userID, ok := userIDFromContext(r.Context())
	if !ok {
		WriteJSONError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var query listNotificationsQuery
	var err error
	if query.UnreadOnly, err = queryBool(r, "unreadOnly"); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Invalid 'unreadOnly' parameter")
		return
	}
	if query.Limit, err = queryInt(r, "limit", 0); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
		return
	}
	if err := h.validate.Struct(query); err != nil {
		logger.Warn("Query validation failed", port.Fields{"error": err.Error()})
		WriteJSONError(w, http.StatusBadRequest, "'limit' must not be negative")
		return
	}

	notifications, err := h.getNotificationsUC.Execute(r.Context(), userID, port.FindOptions{
		UnreadOnly: query.UnreadOnly,
		Limit:      query.Limit,
	})
	if err != nil {
		logger.Error("GetNotifications use case failed", err, port.Fields{"user_id": userID})
		WriteJSONError(w, http.StatusInternalServerError, "Failed to get notifications")
		return
	}

	RespondWithJSON(w, http.StatusOK, toNotificationsListResponse(notifications))
}

// GetUnreadCount - GET /api/v1/notifications/unread-count
func (h *NotificationHandler) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		WriteJSONError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	count, err := h.unreadCountUC.Execute(r.Context(), userID)
	if err != nil {
		contextkeys.LoggerFromContext(r.Context()).Error("GetUnreadCount use case failed", err, port.Fields{
			"handler": "GetUnreadCount",
			"user_id": userID,
		})
		WriteJSONError(w, http.StatusInternalServerError, "Failed to get unread count")
		return
	}

	RespondWithJSON(w, http.StatusOK, UnreadCountResponse{Count: count})
}

// MarkAsRead - PATCH /api/v1/notifications/{notificationID}/read.
// Чужое или уже прочитанное уведомление дает 200 с updated=false
func (h *NotificationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "MarkAsRead"})

	userID, ok := userIDFromContext(r.Context())
	if !ok {
		WriteJSONError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	notificationID, err := uuid.Parse(chi.URLParam(r, "notificationID"))
	if err != nil {
		logger.Warn("Invalid notification ID format in URL", port.Fields{"provided_id": chi.URLParam(r, "notificationID")})
		WriteJSONError(w, http.StatusBadRequest, "Invalid notification ID in URL")
		return
	}

	updated, err := h.markAsReadUC.Execute(r.Context(), userID, notificationID)
	if err != nil {
		logger.Error("MarkAsRead use case failed", err, port.Fields{"user_id": userID})
		WriteJSONError(w, http.StatusInternalServerError, "Failed to mark notification as read")
		return
	}

	if updated {
		h.syncOpenConnections(r.Context(), userID, func(ctx context.Context) error {
			return h.readNotifier.NotifyRead(ctx, userID, notificationID)
		})
	}

	RespondWithJSON(w, http.StatusOK, MarkAsReadResponse{NotificationID: notificationID.String(), Updated: updated})
}

// MarkAllAsRead - PATCH /api/v1/notifications/read-all
func (h *NotificationHandler) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		WriteJSONError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	affected, err := h.markAllAsReadUC.Execute(r.Context(), userID)
	if err != nil {
		contextkeys.LoggerFromContext(r.Context()).Error("MarkAllAsRead use case failed", err, port.Fields{
			"handler": "MarkAllAsRead",
			"user_id": userID,
		})
		WriteJSONError(w, http.StatusInternalServerError, "Failed to mark notifications as read")
		return
	}

	if affected > 0 {
		h.syncOpenConnections(r.Context(), userID, func(ctx context.Context) error {
			return h.readNotifier.NotifyAllRead(ctx, userID)
		})
	}

	RespondWithJSON(w, http.StatusOK, MarkAllAsReadResponse{Updated: affected})
}

// syncOpenConnections сообщает открытым вкладкам об изменении. Ошибка доставки
// не влияет на ответ: запись в хранилище уже выполнена
func (h *NotificationHandler) syncOpenConnections(ctx context.Context, userID string, push func(ctx context.Context) error) {
	if h.readNotifier == nil {
		return
	}
	pushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := push(pushCtx); err != nil {
		contextkeys.LoggerFromContext(ctx).Warn("Failed to sync read state to open connections", port.Fields{
			"user_id": userID,
			"error":   err.Error(),
		})
	}
}

// Pinger - проверка доступности хранилища
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health - GET /healthz
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		contextkeys.LoggerFromContext(r.Context()).Warn("Health check failed", port.Fields{"error": err.Error()})
		RespondWithJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Database: "down"})
		return
	}
	RespondWithJSON(w, http.StatusOK, HealthResponse{Status: "ok", Database: "up"})
}
