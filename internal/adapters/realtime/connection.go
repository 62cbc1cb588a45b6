package realtime

import (
	"context"
	"errors"
	"notification-service/internal/core/port"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrPushTimeout - буфер отправки соединения не освободился за отведенное время
var ErrPushTimeout = errors.New("push to connection timed out")

var errConnectionClosed = errors.New("connection closed")

// Connection - одно websocket-соединение клиента.
// Канал send никогда не закрывается, о завершении сообщает done
type Connection struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}

	closeOnce sync.Once

	mu     sync.Mutex
	userID string
	rooms  map[string]struct{}

	logger port.LoggerPort
}

func newConnection(id string, ws *websocket.Conn, bufferSize int, logger port.LoggerPort) *Connection {
	return &Connection{
		id:     id,
		ws:     ws,
		send:   make(chan []byte, bufferSize),
		done:   make(chan struct{}),
		rooms:  make(map[string]struct{}),
		logger: logger,
	}
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// setUser возвращает предыдущего пользователя соединения
func (c *Connection) setUser(userID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	previous := c.userID
	c.userID = userID
	return previous
}

func (c *Connection) addRoom(room string) {
	c.mu.Lock()
	c.rooms[room] = struct{}{}
	c.mu.Unlock()
}

func (c *Connection) removeRoom(room string) {
	c.mu.Lock()
	delete(c.rooms, room)
	c.mu.Unlock()
}

func (c *Connection) hasRoom(room string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rooms[room]
	return ok
}

// takeRooms забирает все комнаты соединения, оставляя список пустым
func (c *Connection) takeRooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	c.rooms = make(map[string]struct{})
	return rooms
}

// enqueue ставит кадр в очередь отправки, ожидая не дольше timeout
func (c *Connection) enqueue(ctx context.Context, msg []byte, timeout time.Duration) error {
	select {
	case <-c.done:
		return errConnectionClosed
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return errConnectionClosed
	case <-timer.C:
		return ErrPushTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Connection) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Connection) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// writePump - единственная горутина, которая пишет в сокет
func (c *Connection) writePump(pingInterval, writeWait time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
		c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Debug("Write to websocket failed", port.Fields{"error": err.Error()})
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("Ping failed", port.Fields{"error": err.Error()})
				return
			}
		case <-c.done:
			closeMsg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
			c.ws.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait))
			return
		}
	}
}
