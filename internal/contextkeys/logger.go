package contextkeys

import (
	"context"
	"property-listings-puller/internal/core/port"

	"github.com/google/uuid"
)

// Тип для ключа контекста
type loggerKeyType struct{}
type runIDKeyType struct{}

var (
	loggerKey = loggerKeyType{}
	runIDKey  = runIDKeyType{}
)

// ContextWithLogger помещает логгер в контекст
func ContextWithLogger(ctx context.Context, logger port.LoggerPort) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext извлекает логгер из контекста
func LoggerFromContext(ctx context.Context) port.LoggerPort {
	if logger, ok := ctx.Value(loggerKey).(port.LoggerPort); ok {
		return logger
	}

	return &noopLogger{}
}

// ContextWithRunID помещает идентификатор запуска в контекст
func ContextWithRunID(ctx context.Context, runID uuid.UUID) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext извлекает идентификатор запуска, uuid.Nil если его нет
func RunIDFromContext(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(runIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// noopLogger - это реализация LoggerPort, которая ничего не делает
type noopLogger struct{}

func (n *noopLogger) Info(msg string, fields port.Fields)             {}
func (n *noopLogger) Warn(msg string, fields port.Fields)             {}
func (n *noopLogger) Error(msg string, err error, fields port.Fields) {}
func (n *noopLogger) Debug(msg string, fields port.Fields)            {}
func (n *noopLogger) WithFields(fields port.Fields) port.LoggerPort   { return n }
