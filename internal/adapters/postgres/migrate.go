package postgres_adapter

import (
	"context"
	"embed"
	"fmt"
	"notification-service/internal/core/port"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationTableName = "notification_schema_migrations"

// gooseLogger направляет вывод goose в LoggerPort
type gooseLogger struct {
	logger port.LoggerPort
}

func (l *gooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), nil)
}

// Fatalf не завершает процесс: ошибку вернет goose.Up
func (l *gooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), nil, nil)
}

// RunMigrations применяет встроенные миграции через пул соединений
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, logger port.LoggerPort) error {
	migrationLogger := logger.WithFields(port.Fields{"component": "Migrations"})

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetLogger(&gooseLogger{logger: migrationLogger})
	goose.SetBaseFS(migrationsFS)
	goose.SetTableName(migrationTableName)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	migrationLogger.Info("Database schema is up to date", port.Fields{"version": version})
	return nil
}
