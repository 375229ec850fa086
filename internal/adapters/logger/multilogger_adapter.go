package logger_adapter

import (
	"errors"
	"property-listings-puller/internal/core/port"
)

// MultiLoggerAdapter пишет каждую запись во все вложенные логгеры
type MultiLoggerAdapter struct {
	loggers []port.LoggerPort
}

func NewMultiloggerAdapter(loggers ...port.LoggerPort) (port.LoggerPort, error) {
	if len(loggers) == 0 {
		return nil, errors.New("multilogger: at least one logger is required")
	}
	if len(loggers) == 1 {
		return loggers[0], nil
	}
	return &MultiLoggerAdapter{loggers: loggers}, nil
}

func (m *MultiLoggerAdapter) each(fn func(port.LoggerPort)) {
	for _, l := range m.loggers {
		fn(l)
	}
}

func (m *MultiLoggerAdapter) Info(msg string, fields port.Fields) {
	m.each(func(l port.LoggerPort) { l.Info(msg, fields) })
}

func (m *MultiLoggerAdapter) Warn(msg string, fields port.Fields) {
	m.each(func(l port.LoggerPort) { l.Warn(msg, fields) })
}

func (m *MultiLoggerAdapter) Error(msg string, err error, fields port.Fields) {
	m.each(func(l port.LoggerPort) { l.Error(msg, err, fields) })
}

func (m *MultiLoggerAdapter) Debug(msg string, fields port.Fields) {
	m.each(func(l port.LoggerPort) { l.Debug(msg, fields) })
}

func (m *MultiLoggerAdapter) WithFields(fields port.Fields) port.LoggerPort {
	enriched := make([]port.LoggerPort, 0, len(m.loggers))
	m.each(func(l port.LoggerPort) { enriched = append(enriched, l.WithFields(fields)) })
	return &MultiLoggerAdapter{loggers: enriched}
}
