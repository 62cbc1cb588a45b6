package rabbitmq_common

// Logger - минимальный key/value логгер пакетов pkg/rabbitmq.
// Сервисы подключают свой логгер через мост (PkgLoggerBridge в адаптерах)
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(err error, msg string, keysAndValues ...interface{})
}

// discardLogger используется, когда логгер в конфигурации не задан
type discardLogger struct{}

var _ Logger = discardLogger{}

func (discardLogger) Debug(string, ...interface{})        {}
func (discardLogger) Info(string, ...interface{})         {}
func (discardLogger) Warn(string, ...interface{})         {}
func (discardLogger) Error(error, string, ...interface{}) {}

// NewNoopLogger возвращает логгер, который ничего не пишет
func NewNoopLogger() Logger {
	return discardLogger{}
}
