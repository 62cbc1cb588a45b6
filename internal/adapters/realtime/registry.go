package realtime

import (
	"runtime"
	"sync"
)

const (
	userRoomPrefix    = "user:"
	channelRoomPrefix = "channel:"
)

func userRoom(userID string) string { return userRoomPrefix + userID }

// Именованные каналы живут в отдельном пространстве имен,
// чтобы подписка не могла попасть в чужую пользовательскую группу
func channelRoom(channel string) string { return channelRoomPrefix + channel }

// group - соединения одной комнаты. Изменения группы идут под ее собственным
// мьютексом, поэтому операции над разными пользователями не мешают друг другу
type group struct {
	mu      sync.Mutex
	conns   map[*Connection]struct{}
	removed bool
}

// Registry - локальный для процесса реестр комнат
type Registry struct {
	mu     sync.RWMutex
	groups map[string]*group
}

func NewRegistry() *Registry {
	return &Registry{groups: make(map[string]*group)}
}

func (r *Registry) Join(room string, c *Connection) {
	for {
		r.mu.Lock()
		g, ok := r.groups[room]
		if !ok {
			g = &group{conns: make(map[*Connection]struct{})}
			r.groups[room] = g
		}
		r.mu.Unlock()

		g.mu.Lock()
		if g.removed {
			// Группу только что опустошили и вот-вот уберут из карты
			g.mu.Unlock()
			runtime.Gosched()
			continue
		}
		g.conns[c] = struct{}{}
		g.mu.Unlock()
		return
	}
}

// Leave убирает соединение из комнаты. Пустая группа удаляется
func (r *Registry) Leave(room string, c *Connection) {
	r.mu.RLock()
	g, ok := r.groups[room]
	r.mu.RUnlock()
	if !ok {
		return
	}

	g.mu.Lock()
	delete(g.conns, c)
	empty := len(g.conns) == 0 && !g.removed
	if empty {
		g.removed = true
	}
	g.mu.Unlock()

	if empty {
		r.mu.Lock()
		if r.groups[room] == g {
			delete(r.groups, room)
		}
		r.mu.Unlock()
	}
}

// Members возвращает снимок соединений комнаты
func (r *Registry) Members(room string) []*Connection {
	r.mu.RLock()
	g, ok := r.groups[room]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	members := make([]*Connection, 0, len(g.conns))
	for c := range g.conns {
		members = append(members, c)
	}
	return members
}

func (r *Registry) Count(room string) int {
	return len(r.Members(room))
}

// Rooms - число непустых комнат
func (r *Registry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups)
}
