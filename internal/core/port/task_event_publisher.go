package port

import (
	"context"
	"notification-service/internal/core/domain"
)

// TaskEventPublisherPort - контракт издателя событий задач (сторона task-service)
type TaskEventPublisherPort interface {
	PublishTaskEvent(ctx context.Context, event domain.TaskEvent) error
}
