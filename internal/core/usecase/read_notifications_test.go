package usecase

import (
	"context"
	"testing"
	"time"

	"notification-service/internal/core/domain"
	"notification-service/internal/core/port"
	"notification-service/internal/testutils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, store *testutils.MemoryStore, userID string, count int) []*domain.Notification {
	t.Helper()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	seeded := make([]*domain.Notification, 0, count)
	for i := 0; i < count; i++ {
		n := domain.NewNotification(userID, domain.NotificationTaskUpdated, "Task updated", "msg", "task-1", nil)
		n.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Create(context.Background(), n))
		seeded = append(seeded, n)
	}
	return seeded
}

func TestGetNotifications_NewestFirstAndLimit(t *testing.T) {
	store := testutils.NewMemoryStore()
	seeded := seed(t, store, "A", 3)
	seed(t, store, "B", 2)
	uc := NewGetNotificationsUseCase(store)

	got, err := uc.Execute(context.Background(), "A", port.FindOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, seeded[2].ID, got[0].ID)
	assert.Equal(t, seeded[1].ID, got[1].ID)
}

func TestGetNotifications_LimitClamping(t *testing.T) {
	store := testutils.NewMemoryStore()
	seed(t, store, "A", MaxNotificationsLimit+5)
	uc := NewGetNotificationsUseCase(store)

	got, err := uc.Execute(context.Background(), "A", port.FindOptions{})
	require.NoError(t, err)
	assert.Len(t, got, DefaultNotificationsLimit)

	got, err = uc.Execute(context.Background(), "A", port.FindOptions{Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, got, MaxNotificationsLimit)
}

func TestGetNotifications_UnreadOnly(t *testing.T) {
	store := testutils.NewMemoryStore()
	seeded := seed(t, store, "A", 3)
	_, err := store.MarkRead(context.Background(), seeded[0].ID, "A")
	require.NoError(t, err)

	got, err := NewGetNotificationsUseCase(store).Execute(context.Background(), "A", port.FindOptions{UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	for _, n := range got {
		assert.False(t, n.Read)
	}
}

func TestGetNotifications_RequiresUser(t *testing.T) {
	_, err := NewGetNotificationsUseCase(testutils.NewMemoryStore()).Execute(context.Background(), "", port.FindOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}

func TestMarkAsRead(t *testing.T) {
	store := testutils.NewMemoryStore()
	seeded := seed(t, store, "A", 1)
	uc := NewMarkAsReadUseCase(store)
	ctx := context.Background()

	t.Run("foreign notification is not touched", func(t *testing.T) {
		ok, err := uc.Execute(ctx, "B", seeded[0].ID)
		require.NoError(t, err)
		assert.False(t, ok)
		stored, _ := store.Get(seeded[0].ID)
		assert.False(t, stored.Read)
	})

	t.Run("owner marks it read", func(t *testing.T) {
		ok, err := uc.Execute(ctx, "A", seeded[0].ID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("second call reports false", func(t *testing.T) {
		ok, err := uc.Execute(ctx, "A", seeded[0].ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("missing id reports false", func(t *testing.T) {
		ok, err := uc.Execute(ctx, "A", uuid.New())
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestMarkAllAsReadAndUnreadCount(t *testing.T) {
	store := testutils.NewMemoryStore()
	seed(t, store, "A", 4)
	seed(t, store, "B", 1)
	ctx := context.Background()
	countUC := NewGetUnreadCountUseCase(store)

	count, err := countUC.Execute(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	affected, err := NewMarkAllAsReadUseCase(store).Execute(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(4), affected)

	count, err = countUC.Execute(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	count, err = countUC.Execute(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
