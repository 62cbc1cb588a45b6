package usecases_port

import (
	"context"
	"notification-service/internal/core/domain"
	"notification-service/internal/core/port"
)

type GetNotificationsUseCasePort interface {
	Execute(ctx context.Context, userID string, opts port.FindOptions) ([]domain.Notification, error)
}
