package constants

import "notification-service/internal/core/domain"

// Обменник, в который task-service публикует события задач
const (
	TaskEventsExchange     = "task_events"
	TaskEventsExchangeType = "topic"
)

// Очередь сервиса уведомлений
const QueueNotifications = "notifications"

const ConsumerTagNotifications = "notification-service"

// Заголовок сквозной трассировки
const HeaderTraceID = "x-trace-id"

// RoutingKeysTaskEvents - ключи маршрутизации совпадают с именами событий
func RoutingKeysTaskEvents() []string {
	keys := make([]string, 0, len(domain.AllTaskEventTypes))
	for _, t := range domain.AllTaskEventTypes {
		keys = append(keys, string(t))
	}
	return keys
}
