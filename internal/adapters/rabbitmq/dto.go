package rabbitmq

import (
	"notification-service/internal/core/domain"
	"time"
)

// TaskEventDTO - тело сообщения о событии задачи
type TaskEventDTO struct {
	EventType      string     `json:"eventType,omitempty"`
	TaskID         string     `json:"taskId"`
	TaskTitle      string     `json:"taskTitle"`
	UserID         string     `json:"userId"`
	AssignedTo     *string    `json:"assignedTo,omitempty"`
	PreviousStatus *string    `json:"previousStatus,omitempty"`
	NewStatus      *string    `json:"newStatus,omitempty"`
	CommentAuthor  *string    `json:"commentAuthor,omitempty"`
	CommentText    *string    `json:"commentText,omitempty"`
	Participants   []string   `json:"participants,omitempty"`
	Timestamp      *time.Time `json:"timestamp,omitempty"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toDomainTaskEvent(dto TaskEventDTO) domain.TaskEvent {
	event := domain.TaskEvent{
		EventType:      domain.TaskEventType(dto.EventType),
		TaskID:         dto.TaskID,
		TaskTitle:      dto.TaskTitle,
		UserID:         dto.UserID,
		AssignedTo:     deref(dto.AssignedTo),
		PreviousStatus: deref(dto.PreviousStatus),
		NewStatus:      deref(dto.NewStatus),
		CommentAuthor:  deref(dto.CommentAuthor),
		CommentText:    deref(dto.CommentText),
		Participants:   dto.Participants,
	}
	if dto.Timestamp != nil {
		event.Timestamp = dto.Timestamp.UTC()
	}
	return event
}

func fromDomainTaskEvent(event domain.TaskEvent) TaskEventDTO {
	dto := TaskEventDTO{
		EventType:      string(event.EventType),
		TaskID:         event.TaskID,
		TaskTitle:      event.TaskTitle,
		UserID:         event.UserID,
		AssignedTo:     optional(event.AssignedTo),
		PreviousStatus: optional(event.PreviousStatus),
		NewStatus:      optional(event.NewStatus),
		CommentAuthor:  optional(event.CommentAuthor),
		CommentText:    optional(event.CommentText),
		Participants:   event.Participants,
	}
	if !event.Timestamp.IsZero() {
		ts := event.Timestamp.UTC()
		dto.Timestamp = &ts
	}
	return dto
}
