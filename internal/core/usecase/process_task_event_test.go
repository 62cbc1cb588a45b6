package usecase

import (
	"context"
	"errors"
	"testing"

	"notification-service/internal/core/domain"
	"notification-service/internal/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessTaskEvent_StoresAndPushesEveryRecipient(t *testing.T) {
	store := testutils.NewMemoryStore()
	notifier := &testutils.RecordingNotifier{}
	uc := NewProcessTaskEventUseCase(store, notifier)

	created, err := uc.Execute(context.Background(), domain.TaskEvent{
		EventType:     domain.EventTaskComment,
		TaskID:        "task-1",
		TaskTitle:     "Fix login",
		CommentAuthor: "B",
		CommentText:   "hi",
		Participants:  []string{"A", "B", "C"},
	})
	require.NoError(t, err)

	require.Len(t, created, 2)
	assert.Equal(t, []string{"A", "C"}, notifier.Recipients())
	assert.Len(t, store.All(), 2)

	for _, n := range created {
		stored, ok := store.Get(n.ID)
		require.True(t, ok)
		assert.Equal(t, n.UserID, stored.UserID)
		assert.False(t, stored.Read)
	}

	// Отправленное уведомление совпадает с сохраненным
	for _, push := range notifier.Pushes {
		stored, ok := store.Get(push.Notification.ID)
		require.True(t, ok)
		assert.Equal(t, stored.UserID, push.UserID)
	}
}

func TestProcessTaskEvent_NoRecipients(t *testing.T) {
	store := testutils.NewMemoryStore()
	notifier := &testutils.RecordingNotifier{}
	uc := NewProcessTaskEventUseCase(store, notifier)

	created, err := uc.Execute(context.Background(), domain.TaskEvent{
		EventType:    domain.EventTaskUpdated,
		UserID:       "A",
		Participants: []string{"A"},
	})
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.Equal(t, 0, store.CreateCalls)
	assert.Empty(t, notifier.Pushes)
}

func TestProcessTaskEvent_UnknownEventType(t *testing.T) {
	store := testutils.NewMemoryStore()
	uc := NewProcessTaskEventUseCase(store, &testutils.RecordingNotifier{})

	_, err := uc.Execute(context.Background(), domain.TaskEvent{EventType: "task.archived"})
	assert.ErrorIs(t, err, domain.ErrUnknownEventType)
	assert.Equal(t, 0, store.CreateCalls)
}

func TestProcessTaskEvent_StoreFailureStopsProcessing(t *testing.T) {
	storeErr := errors.New("connection refused")
	store := testutils.NewMemoryStore()
	store.CreateErr = storeErr
	notifier := &testutils.RecordingNotifier{}
	uc := NewProcessTaskEventUseCase(store, notifier)

	_, err := uc.Execute(context.Background(), domain.TaskEvent{
		EventType:    domain.EventTaskStatusChanged,
		Participants: []string{"A", "B"},
	})
	assert.ErrorIs(t, err, storeErr)
	assert.Equal(t, 1, store.CreateCalls)
	assert.Empty(t, notifier.Pushes)
}

func TestProcessTaskEvent_PushFailureIsReturned(t *testing.T) {
	pushErr := errors.New("push timed out")
	store := testutils.NewMemoryStore()
	notifier := &testutils.RecordingNotifier{Err: pushErr}
	uc := NewProcessTaskEventUseCase(store, notifier)

	_, err := uc.Execute(context.Background(), domain.TaskEvent{
		EventType:  domain.EventTaskAssigned,
		AssignedTo: "A",
	})
	assert.ErrorIs(t, err, pushErr)
	// Уведомление уже сохранено: повторная доставка может создать дубликат
	assert.Len(t, store.All(), 1)
}
