package usecases_port

import "context"

type GetUnreadCountUseCasePort interface {
	Execute(ctx context.Context, userID string) (int64, error)
}
