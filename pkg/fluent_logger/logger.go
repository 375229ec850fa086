package fluentlogger

import (
	"errors"
	"fmt"
	"time"

	"github.com/fluent/fluent-logger-golang/fluent"
)

// Config хранит конфигурацию для подключения к Fluent Bit
type Config struct {
	Host      string // "127.0.0.1" или "fluent-bit" в Docker
	Port      int    // 24224
	TagPrefix string // общий префикс тегов, обычно имя приложения
	// Async - не блокировать обход, если Fluent Bit недоступен
	Async   bool
	Timeout time.Duration
}

// NewClient создает клиент для Fluent Bit. Соединение не проверяется:
// ошибки появятся при первой отправке записи.
func NewClient(cfg Config) (*fluent.Fluent, error) {
	if cfg.TagPrefix == "" {
		return nil, errors.New("fluent tag prefix is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}

	client, err := fluent.New(fluent.Config{
		FluentHost:   cfg.Host,
		FluentPort:   cfg.Port,
		TagPrefix:    cfg.TagPrefix,
		Async:        cfg.Async,
		Timeout:      cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create fluent logger: %w", err)
	}
	return client, nil
}
