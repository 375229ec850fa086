package rabbitmq_common

// Logger - минимальный логгер пакета, адаптеры приложения подключают к нему свой через мост
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(err error, msg string, keysAndValues ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{})        {}
func (noopLogger) Info(string, ...interface{})         {}
func (noopLogger) Warn(string, ...interface{})         {}
func (noopLogger) Error(error, string, ...interface{}) {}

// NewNoopLogger возвращает логгер, который ничего не пишет
func NewNoopLogger() Logger {
	return noopLogger{}
}
