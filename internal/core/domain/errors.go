package domain

import "errors"

var (
	// ErrUnknownEventType - событие, для которого нет правила рассылки
	ErrUnknownEventType = errors.New("unknown task event type")
	// ErrInvalidEvent - событие не прошло проверку контракта
	ErrInvalidEvent = errors.New("invalid task event")
	// ErrInvalidPayload - некорректные параметры запроса или команды
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrNotAuthenticated - команда пришла до authenticate
	ErrNotAuthenticated = errors.New("not authenticated")
)
