package postgres_adapter

import (
	"context"
	"os"
	"testing"
	"time"

	"notification-service/internal/contextkeys"
	"notification-service/internal/core/domain"
	"notification-service/internal/core/port"
	"notification-service/pkg/postgres"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *PostgresNotificationStore {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	ctx := context.Background()
	pool, err := postgres.NewClient(ctx, postgres.Config{DatabaseURL: dsn, ConnectTimeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool, contextkeys.NoopLogger()))

	store, err := NewPostgresNotificationStore(pool)
	require.NoError(t, err)
	return store
}

// Каждый тест работает со своими пользователями, поэтому чистить таблицу не нужно
func uniqueUser(name string) string {
	return name + "-" + uuid.NewString()
}

func createAt(t *testing.T, store *PostgresNotificationStore, userID string, at time.Time) *domain.Notification {
	t.Helper()
	n := domain.NewNotification(userID, domain.NotificationTaskComment, "New comment", "msg", "task-1",
		domain.Metadata{"commentAuthor": "B", "commentPreview": "hi"})
	n.CreatedAt = at
	n.UpdatedAt = at
	require.NoError(t, store.Create(context.Background(), n))
	return n
}

func TestNewPostgresNotificationStore_NilPool(t *testing.T) {
	_, err := NewPostgresNotificationStore(nil)
	assert.Error(t, err)
}

func TestPostgresNotificationStore_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := uniqueUser("A")

	created := createAt(t, store, user, time.Now().UTC().Truncate(time.Microsecond))

	found, err := store.FindByUser(ctx, user, port.FindOptions{})
	require.NoError(t, err)
	require.Len(t, found, 1)

	got := found[0]
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.Type, got.Type)
	assert.Equal(t, created.Title, got.Title)
	require.NotNil(t, got.TaskID)
	assert.Equal(t, "task-1", *got.TaskID)
	assert.Equal(t, "hi", got.Metadata["commentPreview"])
	assert.False(t, got.Read)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))
}

func TestPostgresNotificationStore_FindByUserOrderingAndFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := uniqueUser("A")
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	oldest := createAt(t, store, user, base)
	middle := createAt(t, store, user, base.Add(time.Minute))
	newest := createAt(t, store, user, base.Add(2*time.Minute))
	createAt(t, store, uniqueUser("B"), base.Add(3*time.Minute))

	all, err := store.FindByUser(ctx, user, port.FindOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []uuid.UUID{newest.ID, middle.ID, oldest.ID}, []uuid.UUID{all[0].ID, all[1].ID, all[2].ID})

	limited, err := store.FindByUser(ctx, user, port.FindOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	ok, err := store.MarkRead(ctx, newest.ID, user)
	require.NoError(t, err)
	require.True(t, ok)

	unread, err := store.FindByUser(ctx, user, port.FindOptions{UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread, 2)
	assert.Equal(t, middle.ID, unread[0].ID)
}

func TestPostgresNotificationStore_MarkReadOwnership(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	owner, stranger := uniqueUser("A"), uniqueUser("B")
	n := createAt(t, store, owner, time.Now().UTC())

	ok, err := store.MarkRead(ctx, n.ID, stranger)
	require.NoError(t, err)
	assert.False(t, ok)

	count, err := store.UnreadCount(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	ok, err = store.MarkRead(ctx, n.ID, owner)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.MarkRead(ctx, n.ID, owner)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgresNotificationStore_MarkAllReadAndUnreadCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user, other := uniqueUser("A"), uniqueUser("B")
	now := time.Now().UTC()
	createAt(t, store, user, now)
	createAt(t, store, user, now.Add(time.Second))
	createAt(t, store, other, now)

	affected, err := store.MarkAllRead(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)

	count, err := store.UnreadCount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	count, err = store.UnreadCount(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	affected, err = store.MarkAllRead(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)
}
