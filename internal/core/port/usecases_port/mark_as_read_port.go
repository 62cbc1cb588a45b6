package usecases_port

import (
	"context"

	"github.com/google/uuid"
)

type MarkAsReadUseCasePort interface {
	Execute(ctx context.Context, userID string, notificationID uuid.UUID) (bool, error)
}
