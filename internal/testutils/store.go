// Package testutils содержит общие заглушки портов для тестов пакетов.
package testutils

import (
	"context"
	"sort"
	"sync"
	"time"

	"notification-service/internal/core/domain"
	"notification-service/internal/core/port"

	"github.com/google/uuid"
)

// MemoryStore - потокобезопасная реализация NotificationStorePort в памяти
type MemoryStore struct {
	mu            sync.Mutex
	notifications map[uuid.UUID]domain.Notification

	// Ошибки, которые вернут соответствующие методы
	CreateErr error
	FindErr   error
	CountErr  error

	CreateCalls int
}

var _ port.NotificationStorePort = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{notifications: make(map[uuid.UUID]domain.Notification)}
}

func (s *MemoryStore) Create(ctx context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CreateCalls++
	if s.CreateErr != nil {
		return s.CreateErr
	}
	s.notifications[n.ID] = *n
	return nil
}

func (s *MemoryStore) FindByUser(ctx context.Context, userID string, opts port.FindOptions) ([]domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FindErr != nil {
		return nil, s.FindErr
	}

	result := make([]domain.Notification, 0)
	for _, n := range s.notifications {
		if n.UserID != userID {
			continue
		}
		if opts.UnreadOnly && n.Read {
			continue
		}
		result = append(result, n)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

func (s *MemoryStore) MarkRead(ctx context.Context, id uuid.UUID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.UserID != userID || n.Read {
		return false, nil
	}
	n.Read = true
	n.UpdatedAt = time.Now().UTC()
	s.notifications[id] = n
	return true, nil
}

func (s *MemoryStore) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var affected int64
	for id, n := range s.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			n.UpdatedAt = time.Now().UTC()
			s.notifications[id] = n
			affected++
		}
	}
	return affected, nil
}

func (s *MemoryStore) UnreadCount(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CountErr != nil {
		return 0, s.CountErr
	}
	var count int64
	for _, n := range s.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

// Get возвращает уведомление по id без проверки владельца
func (s *MemoryStore) Get(id uuid.UUID) (domain.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	return n, ok
}

// All возвращает копию всех сохраненных уведомлений
func (s *MemoryStore) All() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]domain.Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		all = append(all, n)
	}
	return all
}

// Push - одна доставка, зафиксированная RecordingNotifier
type Push struct {
	UserID       string
	Notification domain.Notification
}

// RecordingNotifier запоминает вызовы SendToUser
type RecordingNotifier struct {
	mu     sync.Mutex
	Pushes []Push
	Err    error
}

var _ port.RealtimeNotifierPort = (*RecordingNotifier)(nil)

func (r *RecordingNotifier) SendToUser(ctx context.Context, userID string, n domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Pushes = append(r.Pushes, Push{UserID: userID, Notification: n})
	return nil
}

// Recipients возвращает получателей в порядке доставки
func (r *RecordingNotifier) Recipients() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]string, 0, len(r.Pushes))
	for _, p := range r.Pushes {
		users = append(users, p.UserID)
	}
	return users
}
