package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	core_port "notification-service/internal/core/port"
)

// Server - HTTP-сервер сервиса уведомлений: REST API, websocket и health-check
type Server struct {
	httpServer *http.Server
	logger     core_port.LoggerPort
}

type ServerConfig struct {
	Port               string
	CORSAllowedOrigins []string
}

func NewRouter(
	cfg ServerConfig,
	handlers *NotificationHandler,
	health *HealthHandler,
	realtime http.Handler,
	baseLogger core_port.LoggerPort,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP, LoggerMiddleware(baseLogger), middleware.Recoverer)

	r.Get("/healthz", health.Health)

	// Websocket-шлюз; аутентификация идет командой authenticate внутри соединения
	r.Handle("/notifications", realtime)

	r.Route("/api/v1/notifications", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "PATCH", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID", "X-Trace-ID"},
			ExposedHeaders:   []string{"X-Trace-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		r.Use(AuthMiddleware)

		r.Get("/", handlers.GetNotifications)
		r.Get("/unread-count", handlers.GetUnreadCount)
		r.Patch("/read-all", handlers.MarkAllAsRead)
		r.Patch("/{notificationID}/read", handlers.MarkAsRead)
	})

	return r
}

func NewServer(cfg ServerConfig, handler http.Handler, baseLogger core_port.LoggerPort) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: baseLogger.WithFields(core_port.Fields{"component": "rest_server"}),
	}
}

// Start блокируется до остановки сервера
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", core_port.Fields{"address": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("Could not start server", err, nil)
		return fmt.Errorf("could not start server: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server...", nil)
	return s.httpServer.Shutdown(ctx)
}
