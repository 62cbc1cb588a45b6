package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	logger_adapter "notification-service/internal/adapters/logger"
	postgres_adapter "notification-service/internal/adapters/postgres"
	rabbitmq_adapter "notification-service/internal/adapters/rabbitmq"
	"notification-service/internal/adapters/realtime"
	"notification-service/internal/adapters/rest"
	"notification-service/internal/configs"
	"notification-service/internal/constants"
	"notification-service/internal/core/port"
	"notification-service/internal/core/usecase"
	fluentlogger "notification-service/pkg/fluent_logger"
	"notification-service/pkg/postgres"
	"notification-service/pkg/rabbitmq/rabbitmq_common"
	"notification-service/pkg/rabbitmq/rabbitmq_consumer"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/jackc/pgx/v5/pgxpool"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	config *configs.AppConfig

	apiServer      *rest.Server
	hub            *realtime.Hub
	taskEventsList port.EventListenerPort
	connManager    *rabbitmq_common.ConnectionManager
	dbPool         *pgxpool.Pool

	logger       port.LoggerPort
	fluentClient *fluent.Fluent
}

func NewApp() (*App, error) {
	appConfig, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading application configuration: %w", err)
	}

	// --- 1. ЛОГГЕРЫ ---
	var activeLoggers []port.LoggerPort

	stdoutLogger := logger_adapter.NewSlogAdapter(logger_adapter.SlogConfig{
		Level:    logger_adapter.ParseLevel(appConfig.StdoutLogger.Level),
		IsJSON:   appConfig.StdoutLogger.IsJSON,
		UseColor: true,
	})
	activeLoggers = append(activeLoggers, stdoutLogger)

	var fluentClient *fluent.Fluent
	if appConfig.FluentBit.Enabled {
		fluentClient, err = fluentlogger.NewClient(fluentlogger.Config{
			Host:      appConfig.FluentBit.Host,
			Port:      appConfig.FluentBit.Port,
			TagPrefix: appConfig.AppName,
			Async:     true,
		})
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit client", err, nil)
			return nil, fmt.Errorf("failed to create fluentbit client: %w", err)
		}

		fluentAdapter, err := logger_adapter.NewFluentLoggerAdapter(fluentClient, appConfig.AppName, logger_adapter.ParseLevel(appConfig.FluentBit.Level))
		if err != nil {
			fluentClient.Close()
			return nil, fmt.Errorf("failed to create fluentbit adapter: %w", err)
		}
		activeLoggers = append(activeLoggers, fluentAdapter)
	}

	multiLogger, err := logger_adapter.NewMultiLoggerAdapter(activeLoggers...)
	if err != nil {
		return nil, fmt.Errorf("failed to create multi-logger: %w", err)
	}

	baseLogger := multiLogger.WithFields(port.Fields{"service_name": appConfig.AppName})
	appLogger := baseLogger.WithFields(port.Fields{"component": "app"})
	appLogger.Info("Logger system initialized", port.Fields{
		"active_loggers": len(activeLoggers), "fluent_enabled": appConfig.FluentBit.Enabled,
	})

	// Ресурсы закрываются в обратном порядке, если инициализация оборвалась на середине
	var cleanups []func()
	fail := func(err error) (*App, error) {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
		if fluentClient != nil {
			fluentClient.Close()
		}
		return nil, err
	}

	// --- 2. POSTGRESQL ---
	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelInit()

	dbPool, err := postgres.NewClient(initCtx, postgres.Config{
		DatabaseURL:    appConfig.Postgres.DatabaseURL,
		MaxConns:       appConfig.Postgres.MaxConns,
		ConnectTimeout: 10 * time.Second,
	})
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", err, nil)
		return fail(fmt.Errorf("failed to connect to postgres: %w", err))
	}
	cleanups = append(cleanups, dbPool.Close)
	appLogger.Info("PostgreSQL pool initialized", nil)

	if appConfig.Postgres.RunMigrations {
		if err := postgres_adapter.RunMigrations(initCtx, dbPool, baseLogger); err != nil {
			appLogger.Error("Failed to apply migrations", err, nil)
			return fail(err)
		}
	}

	notificationStore, err := postgres_adapter.NewPostgresNotificationStore(dbPool)
	if err != nil {
		return fail(err)
	}

	// --- 3. RABBITMQ ---
	connManagerLogger := baseLogger.WithFields(port.Fields{"component": "rabbitmq_conn_manager"})
	connManager, err := rabbitmq_common.NewConnectionManager(
		appConfig.RabbitMQ.URL,
		appConfig.RabbitMQ.ReconnectInterval,
		rabbitmq_adapter.NewPkgLoggerBridge(connManagerLogger),
	)
	if err != nil {
		appLogger.Error("Failed to create connection manager", err, nil)
		return fail(fmt.Errorf("failed to create connection manager: %w", err))
	}
	cleanups = append(cleanups, func() { connManager.Close() })
	appLogger.Info("RabbitMQ Connection Manager initialized.", nil)

	// --- 4. USE CASES ---
	getNotificationsUC := usecase.NewGetNotificationsUseCase(notificationStore)
	markAsReadUC := usecase.NewMarkAsReadUseCase(notificationStore)
	markAllAsReadUC := usecase.NewMarkAllAsReadUseCase(notificationStore)
	unreadCountUC := usecase.NewGetUnreadCountUseCase(notificationStore)

	hub := realtime.NewHub(realtime.HubConfig{
		PushTimeout:    appConfig.Realtime.PushTimeout,
		AllowedOrigins: appConfig.Realtime.AllowedOrigins,
	}, getNotificationsUC, markAsReadUC, markAllAsReadUC, unreadCountUC, baseLogger)
	cleanups = append(cleanups, func() { hub.Close() })

	processTaskEventUC := usecase.NewProcessTaskEventUseCase(notificationStore, hub)
	appLogger.Info("All use cases initialized", nil)

	// --- 5. ПОТРЕБИТЕЛЬ СОБЫТИЙ ЗАДАЧ ---
	consumerCfg := rabbitmq_consumer.ConsumerConfig{
		Config:                 rabbitmq_common.Config{URL: appConfig.RabbitMQ.URL},
		QueueName:              appConfig.RabbitMQ.NotificationsQueue,
		DeclareQueue:           true,
		DurableQueue:           true,
		ExchangeNameForBind:    appConfig.RabbitMQ.TaskEventsExchange,
		DeclareExchangeForBind: true,
		ExchangeTypeForBind:    constants.TaskEventsExchangeType,
		DurableExchangeForBind: true,
		RoutingKeysForBind:     constants.RoutingKeysTaskEvents(),
		PrefetchCount:          appConfig.RabbitMQ.Prefetch,
		ConsumerTag:            constants.ConsumerTagNotifications,
		Workers:                appConfig.RabbitMQ.Workers,
		RequeueOnError:         true,
		AckTimeout:             appConfig.RabbitMQ.AckTimeout,
		ResubscribeDelay:       appConfig.RabbitMQ.ReconnectInterval,
	}
	taskEventsListener, err := rabbitmq_adapter.NewTaskEventConsumerAdapter(consumerCfg, processTaskEventUC, baseLogger, connManager)
	if err != nil {
		appLogger.Error("Failed to create task events consumer", err, nil)
		return fail(err)
	}
	appLogger.Info("Task events consumer initialized", port.Fields{
		"queue": appConfig.RabbitMQ.NotificationsQueue, "exchange": appConfig.RabbitMQ.TaskEventsExchange,
	})

	// --- 6. HTTP ---
	serverCfg := rest.ServerConfig{
		Port:               appConfig.Rest.PORT,
		CORSAllowedOrigins: appConfig.Rest.CORSAllowedOrigins,
	}
	handlers := rest.NewNotificationHandler(getNotificationsUC, markAsReadUC, markAllAsReadUC, unreadCountUC, hub)
	router := rest.NewRouter(serverCfg, handlers, rest.NewHealthHandler(notificationStore), hub, baseLogger)
	apiServer := rest.NewServer(serverCfg, router, baseLogger)

	return &App{
		config:         appConfig,
		apiServer:      apiServer,
		hub:            hub,
		taskEventsList: taskEventsListener,
		connManager:    connManager,
		dbPool:         dbPool,
		logger:         appLogger,
		fluentClient:   fluentClient,
	}, nil
}

// Run запускает все компоненты приложения и управляет их жизненным циклом
func (a *App) Run() error {
	appCtx, cancelApp := context.WithCancel(context.Background())

	// для ожидания завершения слушателей
	var wg sync.WaitGroup

	defer func() {
		a.logger.Info("Shutdown sequence initiated...", nil)

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := a.apiServer.Stop(ctx); err != nil {
			a.logger.Error("Error during API server shutdown", err, nil)
		}

		// Потребитель закрывается первым: недоставленные сообщения вернутся в очередь
		if err := a.taskEventsList.Close(); err != nil {
			a.logger.Error("Error closing task events listener", err, nil)
		}
		a.logger.Info("Waiting for background processes to finish...", nil)
		wg.Wait()

		if err := a.hub.Close(); err != nil {
			a.logger.Error("Error closing realtime hub", err, nil)
		}
		if err := a.connManager.Close(); err != nil {
			a.logger.Error("Error closing RabbitMQ connection manager", err, nil)
		}
		a.dbPool.Close()
		a.logger.Info("Application shut down gracefully.", nil)

		if a.fluentClient != nil {
			if err := a.fluentClient.Close(); err != nil {
				// fluent может быть уже недоступен
				fmt.Fprintf(os.Stderr, "ERROR: Error closing fluent client: %v\n", err)
			}
		}
	}()

	a.logger.Info("Application is starting...", nil)

	componentErrors := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		// Потеря брокера не фатальна: потребитель сам переподписывается
		a.logger.Info("Starting task events listener...", nil)
		if err := a.taskEventsList.Start(appCtx); err != nil && !errors.Is(err, context.Canceled) {
			componentErrors <- fmt.Errorf("task events listener error: %w", err)
			return
		}
		a.logger.Info("Task events listener stopped", nil)
	}()

	go func() {
		if err := a.apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			componentErrors <- fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	a.logger.Info("Application running. Waiting for signals or component error...", nil)
	var runErr error
	select {
	case receivedSignal := <-quit:
		a.logger.Warn("Received OS signal, shutting down...", port.Fields{"signal": receivedSignal.String()})
	case err := <-componentErrors:
		a.logger.Error("A critical component failed, shutting down", err, nil)
		runErr = err
	}

	// Отмена контекста останавливает воркеров потребителя
	cancelApp()

	return runErr
}
