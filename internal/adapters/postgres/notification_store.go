package postgres_adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"notification-service/internal/contextkeys"
	"notification-service/internal/core/domain"
	"notification-service/internal/core/port"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresNotificationStore - реализация NotificationStorePort для PostgreSQL
type PostgresNotificationStore struct {
	pool *pgxpool.Pool
}

var _ port.NotificationStorePort = (*PostgresNotificationStore)(nil)

func NewPostgresNotificationStore(pool *pgxpool.Pool) (*PostgresNotificationStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	return &PostgresNotificationStore{pool: pool}, nil
}

func (s *PostgresNotificationStore) Create(ctx context.Context, n *domain.Notification) error {
	repoLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component":       "PostgresNotificationStore",
		"method":          "Create",
		"notification_id": n.ID.String(),
		"user_id":         n.UserID,
	})

	metadataJSON, err := json.Marshal(n.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal notification metadata: %w", err)
	}

	query := `
		INSERT INTO notifications (id, user_id, type, title, message, task_id, read, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.pool.Exec(ctx, query,
		n.ID,
		n.UserID,
		n.Type,
		n.Title,
		n.Message,
		n.TaskID,
		n.Read,
		metadataJSON,
		n.CreatedAt,
		n.UpdatedAt,
	)
	if err != nil {
		repoLogger.Error("Failed to create notification", err, nil)
		return fmt.Errorf("failed to create notification: %w", err)
	}

	repoLogger.Debug("Notification created", nil)
	return nil
}

func (s *PostgresNotificationStore) FindByUser(ctx context.Context, userID string, opts port.FindOptions) ([]domain.Notification, error) {
	repoLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "PostgresNotificationStore",
		"method":    "FindByUser",
		"user_id":   userID,
	})

	query := `
		SELECT id, user_id, type, title, message, task_id, read, metadata, created_at, updated_at
		FROM notifications
		WHERE user_id = $1 AND ($2::boolean = FALSE OR read = FALSE)
		ORDER BY created_at DESC, id
	`
	args := []interface{}{userID, opts.UnreadOnly}
	if opts.Limit > 0 {
		query += " LIMIT $3"
		args = append(args, opts.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		repoLogger.Error("Failed to query notifications", err, nil)
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	notifications, err := pgx.CollectRows(rows, scanNotification)
	if err != nil {
		repoLogger.Error("Failed to scan notifications", err, nil)
		return nil, fmt.Errorf("failed to scan notifications: %w", err)
	}

	repoLogger.Debug("Notifications found", port.Fields{"count": len(notifications)})
	return notifications, nil
}

// MarkRead возвращает false, если уведомление не найдено, чужое или уже прочитано
func (s *PostgresNotificationStore) MarkRead(ctx context.Context, notificationID uuid.UUID, userID string) (bool, error) {
	repoLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component":       "PostgresNotificationStore",
		"method":          "MarkRead",
		"notification_id": notificationID.String(),
		"user_id":         userID,
	})

	query := `
		UPDATE notifications
		SET read = TRUE, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND read = FALSE
	`
	cmdTag, err := s.pool.Exec(ctx, query, notificationID, userID)
	if err != nil {
		repoLogger.Error("Failed to mark notification as read", err, nil)
		return false, fmt.Errorf("failed to mark notification as read: %w", err)
	}
	return cmdTag.RowsAffected() > 0, nil
}

func (s *PostgresNotificationStore) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	query := `
		UPDATE notifications
		SET read = TRUE, updated_at = NOW()
		WHERE user_id = $1 AND read = FALSE
	`
	cmdTag, err := s.pool.Exec(ctx, query, userID)
	if err != nil {
		contextkeys.LoggerFromContext(ctx).Error("Failed to mark all notifications as read", err, port.Fields{
			"component": "PostgresNotificationStore",
			"user_id":   userID,
		})
		return 0, fmt.Errorf("failed to mark all notifications as read: %w", err)
	}
	return cmdTag.RowsAffected(), nil
}

func (s *PostgresNotificationStore) UnreadCount(ctx context.Context, userID string) (int64, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = FALSE`

	var count int64
	if err := s.pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		contextkeys.LoggerFromContext(ctx).Error("Failed to count unread notifications", err, port.Fields{
			"component": "PostgresNotificationStore",
			"user_id":   userID,
		})
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// Ping проверяет доступность базы для health-check
func (s *PostgresNotificationStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func scanNotification(row pgx.CollectableRow) (domain.Notification, error) {
	var n domain.Notification
	var metadataJSON []byte

	err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.Type,
		&n.Title,
		&n.Message,
		&n.TaskID,
		&n.Read,
		&metadataJSON,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		return n, err
	}

	n.Metadata = make(domain.Metadata)
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &n.Metadata); err != nil {
			return n, fmt.Errorf("failed to unmarshal metadata of notification %s: %w", n.ID, err)
		}
	}
	n.CreatedAt = n.CreatedAt.UTC()
	n.UpdatedAt = n.UpdatedAt.UTC()
	return n, nil
}
