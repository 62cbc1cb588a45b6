package usecases_port

import (
	"context"
	"notification-service/internal/core/domain"
)

type ProcessTaskEventUseCasePort interface {
	Execute(ctx context.Context, event domain.TaskEvent) ([]domain.Notification, error)
}
