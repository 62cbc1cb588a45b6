package contextkeys

import (
	"context"

	"github.com/google/uuid"
)

type traceIDKeyType struct{}

var traceIDKey = traceIDKeyType{}

// ContextWithTraceID помещает trace_id в контекст
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromContext возвращает trace_id или пустую строку
func TraceIDFromContext(ctx context.Context) string {
	traceID, _ := ctx.Value(traceIDKey).(string)
	return traceID
}

// EnsureTraceID выбирает trace_id для операции: сначала incoming (заголовок
// сообщения или запроса), затем уже лежащий в контексте, иначе новый uuid.
// Выбранный id кладется в возвращаемый контекст
func EnsureTraceID(ctx context.Context, incoming string) (context.Context, string) {
	traceID := incoming
	if traceID == "" {
		traceID = TraceIDFromContext(ctx)
	}
	if traceID == "" {
		traceID = uuid.New().String()
	}
	return ContextWithTraceID(ctx, traceID), traceID
}
