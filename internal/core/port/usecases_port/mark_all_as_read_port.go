package usecases_port

import "context"

type MarkAllAsReadUseCasePort interface {
	Execute(ctx context.Context, userID string) (int64, error)
}
