package rabbitmq_common

import (
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const reconnectInterval = 10 * time.Second

// ConnectionManager владеет одним соединением с RabbitMQ и переподключается в фоне
type ConnectionManager struct {
	url        string
	connection *amqp.Connection
	mutex      sync.RWMutex
	done       chan struct{}
	closeOnce  sync.Once
	Logger     Logger
}

// NewConnectionManager подключается к брокеру и запускает фоновое переподключение
func NewConnectionManager(cfg Config, logger Logger) (*ConnectionManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = NewNoopLogger()
	}

	m := &ConnectionManager{
		url:    cfg.URL,
		done:   make(chan struct{}),
		Logger: logger,
	}
	if _, err := m.getConnection(); err != nil {
		return nil, fmt.Errorf("initial connection failed: %w", err)
	}
	go m.handleReconnect()
	return m, nil
}

func (m *ConnectionManager) getConnection() (*amqp.Connection, error) {
	m.mutex.RLock()
	if m.connection != nil && !m.connection.IsClosed() {
		defer m.mutex.RUnlock()
		return m.connection, nil
	}
	m.mutex.RUnlock()

	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.connection != nil && !m.connection.IsClosed() {
		return m.connection, nil
	}

	m.Logger.Debug("ConnectionManager: Connecting...")
	conn, err := amqp.Dial(m.url)
	if err != nil {
		return nil, fmt.Errorf("ConnectionManager: failed to dial RabbitMQ: %w", err)
	}
	m.connection = conn
	m.Logger.Debug("ConnectionManager: Connected")
	return conn, nil
}

// GetChannel открывает новый канал на общем соединении
func (m *ConnectionManager) GetChannel() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := m.getConnection()
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return conn, nil, fmt.Errorf("ConnectionManager: failed to open a channel: %w", err)
	}
	return conn, ch, nil
}

func (m *ConnectionManager) handleReconnect() {
	ticker := time.NewTicker(reconnectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
		}

		m.mutex.RLock()
		closed := m.connection != nil && m.connection.IsClosed()
		m.mutex.RUnlock()
		if !closed {
			continue
		}

		m.Logger.Warn("ConnectionManager: Connection closed, reconnecting")
		if _, err := m.getConnection(); err != nil {
			m.Logger.Error(err, "ConnectionManager: Reconnect failed")
		}
	}
}

// Close останавливает переподключение и закрывает соединение
func (m *ConnectionManager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.done)

		m.mutex.Lock()
		defer m.mutex.Unlock()
		if m.connection != nil && !m.connection.IsClosed() {
			err = m.connection.Close()
		}
	})
	return err
}
