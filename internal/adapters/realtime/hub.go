package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"notification-service/internal/contextkeys"
	"notification-service/internal/core/domain"
	"notification-service/internal/core/port"
	"notification-service/internal/core/port/usecases_port"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// HubConfig - параметры websocket-шлюза. Нулевые значения заменяются дефолтами
type HubConfig struct {
	PushTimeout    time.Duration
	CommandTimeout time.Duration
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
	SendBufferSize int
	AllowedOrigins []string
}

func (c *HubConfig) applyDefaults() {
	if c.PushTimeout <= 0 {
		c.PushTimeout = 5 * time.Second
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongWait {
		c.PingInterval = c.PongWait * 9 / 10
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 64 * 1024
	}
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = 64
	}
}

// Hub - websocket-шлюз: принимает соединения, выполняет команды клиентов
// и доставляет уведомления во все открытые соединения пользователя
type Hub struct {
	cfg      HubConfig
	upgrader websocket.Upgrader
	registry *Registry
	validate *validator.Validate

	getNotificationsUC usecases_port.GetNotificationsUseCasePort
	markAsReadUC       usecases_port.MarkAsReadUseCasePort
	markAllAsReadUC    usecases_port.MarkAllAsReadUseCasePort
	unreadCountUC      usecases_port.GetUnreadCountUseCasePort

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	conns  map[*Connection]struct{}
	closed bool
	wg     sync.WaitGroup

	logger port.LoggerPort
}

var (
	_ port.RealtimeNotifierPort  = (*Hub)(nil)
	_ port.ReadStateNotifierPort = (*Hub)(nil)
)

func NewHub(
	cfg HubConfig,
	getNotificationsUC usecases_port.GetNotificationsUseCasePort,
	markAsReadUC usecases_port.MarkAsReadUseCasePort,
	markAllAsReadUC usecases_port.MarkAllAsReadUseCasePort,
	unreadCountUC usecases_port.GetUnreadCountUseCasePort,
	baseLogger port.LoggerPort,
) *Hub {
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		cfg:                cfg,
		registry:           NewRegistry(),
		validate:           validator.New(),
		getNotificationsUC: getNotificationsUC,
		markAsReadUC:       markAsReadUC,
		markAllAsReadUC:    markAllAsReadUC,
		unreadCountUC:      unreadCountUC,
		ctx:                ctx,
		cancel:             cancel,
		conns:              make(map[*Connection]struct{}),
		logger:             baseLogger.WithFields(port.Fields{"component": "RealtimeHub"}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// ServeHTTP переводит запрос в websocket и запускает горутины чтения и записи
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам пишет ответ клиенту
		h.logger.Warn("Websocket upgrade failed", port.Fields{"error": err.Error(), "remote_addr": r.RemoteAddr})
		return
	}

	connID := uuid.New().String()
	c := newConnection(connID, ws, h.cfg.SendBufferSize, h.logger.WithFields(port.Fields{"conn_id": connID}))

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		ws.Close()
		return
	}
	h.conns[c] = struct{}{}
	h.wg.Add(2)
	h.mu.Unlock()

	c.logger.Info("Client connected", port.Fields{"remote_addr": r.RemoteAddr})

	go func() {
		defer h.wg.Done()
		c.writePump(h.cfg.PingInterval, h.cfg.WriteWait)
	}()
	go func() {
		defer h.wg.Done()
		h.readPump(c)
	}()
}

func (h *Hub) readPump(c *Connection) {
	defer h.disconnect(c)

	c.ws.SetReadLimit(h.cfg.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) && !c.closed() {
				c.logger.Warn("Websocket closed unexpectedly", port.Fields{"error": err.Error()})
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
		h.handleMessage(c, data)
	}
}

// disconnect убирает соединение из всех комнат
func (h *Hub) disconnect(c *Connection) {
	c.close()
	for _, room := range c.takeRooms() {
		h.registry.Leave(room, c)
	}

	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()

	c.logger.Info("Client disconnected", port.Fields{"user_id": c.UserID()})
}

func (h *Hub) handleMessage(c *Connection, data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Event == "" {
		h.reply(c, EventError, errorData{Message: "Invalid message format"})
		return
	}

	cmdLogger := c.logger.WithFields(port.Fields{"event": msg.Event, "user_id": c.UserID()})
	ctx, cancel := context.WithTimeout(h.ctx, h.cfg.CommandTimeout)
	defer cancel()
	ctx = contextkeys.ContextWithLogger(ctx, cmdLogger)

	cmdLogger.Debug("Command received", nil)

	if msg.Event == EventAuthenticate {
		h.handleAuthenticate(ctx, c, msg.Data)
		return
	}

	switch msg.Event {
	case EventGetNotifications, EventMarkAsRead, EventMarkAllAsRead, EventSubscribe, EventUnsubscribe:
	default:
		h.reply(c, EventError, errorData{Message: fmt.Sprintf("Unknown event: %s", msg.Event)})
		return
	}

	userID, err := authenticatedUser(c)
	if err != nil {
		cmdLogger.Debug("Command rejected", port.Fields{"error": err.Error()})
		h.reply(c, EventError, errorData{Message: "Not authenticated"})
		return
	}

	switch msg.Event {
	case EventGetNotifications:
		h.handleGetNotifications(ctx, c, userID, msg.Data)
	case EventMarkAsRead:
		h.handleMarkAsRead(ctx, c, userID, msg.Data)
	case EventMarkAllAsRead:
		h.handleMarkAllAsRead(ctx, c, userID)
	case EventSubscribe:
		h.handleSubscribe(c, msg.Data)
	case EventUnsubscribe:
		h.handleUnsubscribe(c, msg.Data)
	}
}

// authenticatedUser возвращает пользователя соединения или ErrNotAuthenticated
func authenticatedUser(c *Connection) (string, error) {
	userID := c.UserID()
	if userID == "" {
		return "", domain.ErrNotAuthenticated
	}
	return userID, nil
}

func (h *Hub) handleAuthenticate(ctx context.Context, c *Connection, raw json.RawMessage) {
	var payload authenticatePayload
	if err := decodePayload(raw, &payload, h.validate); err != nil {
		h.reply(c, EventError, errorData{Message: "Invalid authenticate payload"})
		return
	}

	previous := c.setUser(payload.UserID)
	if previous != "" && previous != payload.UserID {
		h.registry.Leave(userRoom(previous), c)
		c.removeRoom(userRoom(previous))
	}
	room := userRoom(payload.UserID)
	if !c.hasRoom(room) {
		h.registry.Join(room, c)
		c.addRoom(room)
	}

	contextkeys.LoggerFromContext(ctx).Info("Client authenticated", port.Fields{"user_id": payload.UserID, "previous_user_id": previous})
	h.reply(c, EventAuthenticated, authenticatedData{Success: true, UserID: payload.UserID})

	// Счетчик отправляется отдельно, чтобы не задерживать ответ
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		countCtx, cancel := context.WithTimeout(h.ctx, h.cfg.CommandTimeout)
		defer cancel()
		count, err := h.unreadCountUC.Execute(countCtx, payload.UserID)
		if err != nil {
			c.logger.Error("Failed to load unread count after authentication", err, port.Fields{"user_id": payload.UserID})
			return
		}
		h.reply(c, EventUnreadCount, unreadCountData{Count: count})
	}()
}

func (h *Hub) handleGetNotifications(ctx context.Context, c *Connection, userID string, raw json.RawMessage) {
	var payload getNotificationsPayload
	if err := decodePayload(raw, &payload, h.validate); err != nil {
		h.reply(c, EventError, errorData{Message: "Invalid get_notifications payload"})
		return
	}

	notifications, err := h.getNotificationsUC.Execute(ctx, userID, port.FindOptions{
		UnreadOnly: payload.UnreadOnly,
		Limit:      payload.Limit,
	})
	if err != nil {
		h.reply(c, EventError, errorData{Message: "Failed to get notifications"})
		return
	}
	h.reply(c, EventNotifications, notificationsData{Notifications: notifications})
}

func (h *Hub) handleMarkAsRead(ctx context.Context, c *Connection, userID string, raw json.RawMessage) {
	var payload markAsReadPayload
	if err := decodePayload(raw, &payload, h.validate); err != nil {
		h.reply(c, EventError, errorData{Message: "Invalid mark_as_read payload"})
		return
	}
	notificationID, err := uuid.Parse(payload.NotificationID)
	if err != nil {
		h.reply(c, EventError, errorData{Message: "Invalid mark_as_read payload"})
		return
	}

	// Чужое или уже прочитанное уведомление не является ошибкой
	if _, err := h.markAsReadUC.Execute(ctx, userID, notificationID); err != nil {
		h.reply(c, EventError, errorData{Message: "Failed to mark notification as read"})
		return
	}
	h.reply(c, EventNotificationRead, notificationReadData{NotificationID: notificationID.String()})
	h.replyUnreadCount(ctx, c, userID)
}

func (h *Hub) handleMarkAllAsRead(ctx context.Context, c *Connection, userID string) {
	affected, err := h.markAllAsReadUC.Execute(ctx, userID)
	if err != nil {
		h.reply(c, EventError, errorData{Message: "Failed to mark notifications as read"})
		return
	}
	h.reply(c, EventAllNotificationsRead, allNotificationsReadData{Count: affected})
	h.replyUnreadCount(ctx, c, userID)
}

func (h *Hub) handleSubscribe(c *Connection, raw json.RawMessage) {
	var payload channelPayload
	if err := decodePayload(raw, &payload, h.validate); err != nil {
		h.reply(c, EventError, errorData{Message: "Invalid subscribe payload"})
		return
	}
	room := channelRoom(payload.Channel)
	if !c.hasRoom(room) {
		h.registry.Join(room, c)
		c.addRoom(room)
	}
	h.reply(c, EventSubscribed, channelData{Channel: payload.Channel})
}

func (h *Hub) handleUnsubscribe(c *Connection, raw json.RawMessage) {
	var payload channelPayload
	if err := decodePayload(raw, &payload, h.validate); err != nil {
		h.reply(c, EventError, errorData{Message: "Invalid unsubscribe payload"})
		return
	}
	room := channelRoom(payload.Channel)
	h.registry.Leave(room, c)
	c.removeRoom(room)
	h.reply(c, EventUnsubscribed, channelData{Channel: payload.Channel})
}

func (h *Hub) replyUnreadCount(ctx context.Context, c *Connection, userID string) {
	count, err := h.unreadCountUC.Execute(ctx, userID)
	if err != nil {
		h.reply(c, EventError, errorData{Message: "Failed to get unread count"})
		return
	}
	h.reply(c, EventUnreadCount, unreadCountData{Count: count})
}

// reply отправляет ответ только запросившему соединению
func (h *Hub) reply(c *Connection, event string, data interface{}) {
	msg, err := encodeEnvelope(event, data)
	if err != nil {
		c.logger.Error("Failed to encode reply", err, port.Fields{"event": event})
		return
	}
	if err := c.enqueue(h.ctx, msg, h.cfg.PushTimeout); err != nil && !errors.Is(err, errConnectionClosed) {
		c.logger.Warn("Failed to enqueue reply", port.Fields{"event": event, "error": err.Error()})
	}
}

// SendToUser доставляет new_notification во все соединения пользователя,
// затем актуальный unread_count. Нет соединений - нет доставки
func (h *Hub) SendToUser(ctx context.Context, userID string, notification domain.Notification) error {
	conns := h.registry.Members(userRoom(userID))
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component":       "RealtimeHub",
		"user_id":         userID,
		"notification_id": notification.ID.String(),
	})
	if len(conns) == 0 {
		logger.Debug("No open connections for user, notification not pushed", nil)
		return nil
	}

	if err := h.broadcast(ctx, conns, EventNewNotification, notification); err != nil {
		return err
	}
	if err := h.pushUnreadCount(ctx, userID); err != nil {
		return err
	}

	logger.Debug("Notification pushed", port.Fields{"connections": len(conns)})
	return nil
}

// NotifyRead синхронизирует прочтение, выполненное вне websocket
func (h *Hub) NotifyRead(ctx context.Context, userID string, notificationID uuid.UUID) error {
	conns := h.registry.Members(userRoom(userID))
	if len(conns) == 0 {
		return nil
	}
	if err := h.broadcast(ctx, conns, EventNotificationRead, notificationReadData{NotificationID: notificationID.String()}); err != nil {
		return err
	}
	return h.pushUnreadCount(ctx, userID)
}

func (h *Hub) NotifyAllRead(ctx context.Context, userID string) error {
	conns := h.registry.Members(userRoom(userID))
	if len(conns) == 0 {
		return nil
	}
	if err := h.broadcast(ctx, conns, EventAllNotificationsRead, allNotificationsReadData{}); err != nil {
		return err
	}
	return h.pushUnreadCount(ctx, userID)
}

// BroadcastToChannel отправляет событие подписчикам именованного канала
// и возвращает число соединений, которым оно доставлено
func (h *Hub) BroadcastToChannel(ctx context.Context, channel, event string, data interface{}) (int, error) {
	conns := h.registry.Members(channelRoom(channel))
	if len(conns) == 0 {
		return 0, nil
	}
	if err := h.broadcast(ctx, conns, event, data); err != nil {
		return 0, err
	}
	return len(conns), nil
}

func (h *Hub) pushUnreadCount(ctx context.Context, userID string) error {
	count, err := h.unreadCountUC.Execute(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load unread count: %w", err)
	}
	return h.broadcast(ctx, h.registry.Members(userRoom(userID)), EventUnreadCount, unreadCountData{Count: count})
}

// broadcast ставит кадр в очередь каждого соединения. Соединение, которое
// не успело принять кадр, закрывается, а вызывающему возвращается ErrPushTimeout
func (h *Hub) broadcast(ctx context.Context, conns []*Connection, event string, data interface{}) error {
	msg, err := encodeEnvelope(event, data)
	if err != nil {
		return err
	}

	var pushErr error
	for _, c := range conns {
		err := c.enqueue(ctx, msg, h.cfg.PushTimeout)
		switch {
		case err == nil, errors.Is(err, errConnectionClosed):
		case errors.Is(err, ErrPushTimeout):
			c.logger.Warn("Connection is too slow, closing it", port.Fields{"event": event})
			c.close()
			pushErr = fmt.Errorf("%s to connection %s: %w", event, c.ID(), err)
		default:
			return fmt.Errorf("%s to connection %s: %w", event, c.ID(), err)
		}
	}
	return pushErr
}

// ConnectionsForUser - число открытых соединений пользователя
func (h *Hub) ConnectionsForUser(userID string) int {
	return h.registry.Count(userRoom(userID))
}

// Close закрывает все соединения и ждет завершения их горутин
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	conns := make([]*Connection, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	h.logger.Info("Closing realtime hub", port.Fields{"connections": len(conns)})
	h.cancel()
	for _, c := range conns {
		c.close()
	}
	h.wg.Wait()
	h.logger.Info("Realtime hub closed", nil)
	return nil
}
