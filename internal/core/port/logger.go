package port

// Fields - структурированные поля записи лога
type Fields map[string]interface{}

// LoggerPort - единственный API логирования для ядра и адаптеров.
// Реализации: slog (stdout), Fluent Bit и их комбинация
type LoggerPort interface {
	Debug(msg string, fields Fields)
	Info(msg string, fields Fields)
	Warn(msg string, fields Fields)
	// Error принимает ошибку отдельно, чтобы sink мог положить ее в поле "error"
	Error(msg string, err error, fields Fields)
	// WithFields возвращает логгер, который добавляет fields к каждой записи
	WithFields(fields Fields) LoggerPort
}
