package domain

import "time"

// TaskEventType - имя доменного события задачи. Совпадает с ключом маршрутизации
type TaskEventType string

const (
	EventTaskCreated       TaskEventType = "task.created"
	EventTaskUpdated       TaskEventType = "task.updated"
	EventTaskAssigned      TaskEventType = "task.assigned"
	EventTaskStatusChanged TaskEventType = "task.status_changed"
	EventTaskComment       TaskEventType = "task.comment"
)

// AllTaskEventTypes - все события, на которые подписан сервис
var AllTaskEventTypes = []TaskEventType{
	EventTaskCreated,
	EventTaskUpdated,
	EventTaskAssigned,
	EventTaskStatusChanged,
	EventTaskComment,
}

func (t TaskEventType) IsValid() bool {
	for _, known := range AllTaskEventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// TaskEvent - событие от task-service. Здесь не сохраняется.
// Пустая строка в необязательных полях означает отсутствие значения
type TaskEvent struct {
	EventType      TaskEventType
	TaskID         string
	TaskTitle      string
	UserID         string // кто совершил действие
	AssignedTo     string
	PreviousStatus string
	NewStatus      string
	CommentAuthor  string
	CommentText    string
	Participants   []string
	Timestamp      time.Time
}
