package rabbitmq

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"notification-service/internal/contextkeys"
	"notification-service/internal/core/domain"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var receivedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestDecodeTaskEvent(t *testing.T) {
	t.Run("full comment event", func(t *testing.T) {
		body := []byte(`{
			"eventType": "task.comment",
			"taskId": "task-1",
			"taskTitle": "Fix login",
			"userId": "B",
			"commentAuthor": "B",
			"commentText": "hi",
			"participants": ["A", "B", "C"],
			"timestamp": "2026-02-28T09:30:00Z"
		}`)

		event, err := decodeTaskEvent(body, "task.comment", receivedAt)
		require.NoError(t, err)
		assert.Equal(t, domain.EventTaskComment, event.EventType)
		assert.Equal(t, "task-1", event.TaskID)
		assert.Equal(t, "B", event.CommentAuthor)
		assert.Equal(t, []string{"A", "B", "C"}, event.Participants)
		assert.Equal(t, time.Date(2026, 2, 28, 9, 30, 0, 0, time.UTC), event.Timestamp)
	})

	t.Run("event type falls back to routing key", func(t *testing.T) {
		event, err := decodeTaskEvent([]byte(`{"taskId": "task-1", "userId": "A", "assignedTo": "B"}`), "task.assigned", receivedAt)
		require.NoError(t, err)
		assert.Equal(t, domain.EventTaskAssigned, event.EventType)
		assert.Equal(t, "B", event.AssignedTo)
	})

	t.Run("missing timestamp becomes receive time", func(t *testing.T) {
		event, err := decodeTaskEvent([]byte(`{"eventType": "task.updated", "taskId": "t", "userId": "A"}`), "task.updated", receivedAt)
		require.NoError(t, err)
		assert.Equal(t, receivedAt, event.Timestamp)
	})

	t.Run("null optional fields are absent", func(t *testing.T) {
		event, err := decodeTaskEvent([]byte(`{"eventType": "task.created", "taskId": "t", "userId": "A", "assignedTo": null}`), "task.created", receivedAt)
		require.NoError(t, err)
		assert.Empty(t, event.AssignedTo)
	})

	t.Run("null participants decode as empty", func(t *testing.T) {
		body := []byte(`{"eventType": "task.comment", "taskId": "t", "userId": "A", "commentText": "hi", "participants": null}`)
		event, err := decodeTaskEvent(body, "task.comment", receivedAt)
		require.NoError(t, err)
		assert.Empty(t, event.Participants)
	})

	t.Run("long user ids are accepted", func(t *testing.T) {
		longID := strings.Repeat("u", 300)
		body := []byte(`{"eventType": "task.assigned", "taskId": "t", "userId": "A", "assignedTo": "` + longID + `", "participants": ["` + longID + `"]}`)
		event, err := decodeTaskEvent(body, "task.assigned", receivedAt)
		require.NoError(t, err)
		assert.Equal(t, longID, event.AssignedTo)
		assert.Equal(t, []string{longID}, event.Participants)
	})

	t.Run("schema violation", func(t *testing.T) {
		_, err := decodeTaskEvent([]byte(`{"eventType": "task.created"}`), "task.created", receivedAt)
		assert.ErrorIs(t, err, domain.ErrInvalidEvent)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := decodeTaskEvent([]byte(`{"taskId":`), "task.created", receivedAt)
		assert.ErrorIs(t, err, domain.ErrInvalidEvent)
	})

	t.Run("unknown routing key without event type", func(t *testing.T) {
		_, err := decodeTaskEvent([]byte(`{"taskId": "t", "userId": "A"}`), "task.archived", receivedAt)
		assert.ErrorIs(t, err, domain.ErrUnknownEventType)
	})
}

type fakeProcessUseCase struct {
	events []domain.TaskEvent
	err    error
	ctx    context.Context
}

func (f *fakeProcessUseCase) Execute(ctx context.Context, event domain.TaskEvent) ([]domain.Notification, error) {
	f.ctx = ctx
	f.events = append(f.events, event)
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Notification{}, nil
}

func TestTaskEventConsumerAdapter_HandleMessage(t *testing.T) {
	t.Run("passes event and trace id to use case", func(t *testing.T) {
		uc := &fakeProcessUseCase{}
		adapter := &TaskEventConsumerAdapter{useCase: uc, logger: contextkeys.NoopLogger()}

		err := adapter.handleMessage(context.Background(), amqp.Delivery{
			RoutingKey: "task.updated",
			Headers:    amqp.Table{"x-trace-id": "trace-123"},
			Body:       []byte(`{"taskId": "t", "userId": "A", "participants": ["A", "B"]}`),
		})
		require.NoError(t, err)
		require.Len(t, uc.events, 1)
		assert.Equal(t, domain.EventTaskUpdated, uc.events[0].EventType)
		assert.Equal(t, "trace-123", contextkeys.TraceIDFromContext(uc.ctx))
	})

	t.Run("use case failure is returned for requeue", func(t *testing.T) {
		storeErr := errors.New("db is down")
		uc := &fakeProcessUseCase{err: storeErr}
		adapter := &TaskEventConsumerAdapter{useCase: uc, logger: contextkeys.NoopLogger()}

		err := adapter.handleMessage(context.Background(), amqp.Delivery{
			RoutingKey: "task.assigned",
			Body:       []byte(`{"taskId": "t", "userId": "A", "assignedTo": "B"}`),
		})
		assert.ErrorIs(t, err, storeErr)
		assert.NotEmpty(t, contextkeys.TraceIDFromContext(uc.ctx))
	})

	t.Run("invalid body never reaches use case", func(t *testing.T) {
		uc := &fakeProcessUseCase{}
		adapter := &TaskEventConsumerAdapter{useCase: uc, logger: contextkeys.NoopLogger()}

		err := adapter.handleMessage(context.Background(), amqp.Delivery{RoutingKey: "task.comment", Body: []byte(`[]`)})
		assert.ErrorIs(t, err, domain.ErrInvalidEvent)
		assert.Empty(t, uc.events)
	})
}
