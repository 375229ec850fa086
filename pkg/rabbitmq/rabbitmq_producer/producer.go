package rabbitmq_producer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"property-listings-puller/pkg/rabbitmq/rabbitmq_common"

	amqp "github.com/rabbitmq/amqp091-go"
)

// PublisherConfig конфигурация производителя
type PublisherConfig struct {
	rabbitmq_common.Config
	ExchangeName    string // пустая строка - обменник по умолчанию
	ExchangeType    string // direct, fanout, topic, headers
	DurableExchange bool
	ExchangeArgs    amqp.Table

	// DeclareExchangeIfMissing - объявить обменник при создании производителя
	DeclareExchangeIfMissing bool

	Logger rabbitmq_common.Logger
}

func (c PublisherConfig) validate() error {
	if err := c.Config.Validate(); err != nil {
		return fmt.Errorf("invalid base config: %w", err)
	}
	if c.DeclareExchangeIfMissing && (c.ExchangeName == "" || c.ExchangeType == "") {
		return errors.New("producer: exchange name and type are required to declare an exchange")
	}
	return nil
}

// Publisher публикует сообщения в один обменник через канал общего соединения
type Publisher struct {
	config  PublisherConfig
	manager *rabbitmq_common.ConnectionManager
	channel *amqp.Channel
	conn    *amqp.Connection
	mu      sync.Mutex

	Logger rabbitmq_common.Logger
}

// NewPublisher создает производителя и при необходимости объявляет обменник
func NewPublisher(cfg PublisherConfig, manager *rabbitmq_common.ConnectionManager) (*Publisher, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = rabbitmq_common.NewNoopLogger()
	}

	p := &Publisher{config: cfg, manager: manager, Logger: logger}
	if err := p.openChannel(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) openChannel() error {
	conn, ch, err := p.manager.GetChannel()
	if err != nil {
		return fmt.Errorf("producer: failed to get channel from manager: %w", err)
	}

	if p.config.DeclareExchangeIfMissing {
		p.Logger.Debug("Declaring exchange", "name", p.config.ExchangeName, "type", p.config.ExchangeType)
		err = ch.ExchangeDeclare(
			p.config.ExchangeName,
			p.config.ExchangeType,
			p.config.DurableExchange,
			false, // auto-delete
			false, // internal
			false, // no-wait
			p.config.ExchangeArgs,
		)
		if err != nil {
			_ = ch.Close()
			return fmt.Errorf("producer: failed to declare exchange '%s': %w", p.config.ExchangeName, err)
		}
	}

	p.conn = conn
	p.channel = ch
	return nil
}

// Publish публикует сообщение. Закрытый после переподключения канал открывается заново.
func (p *Publisher) Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil || p.channel.IsClosed() || p.conn.IsClosed() {
		p.Logger.Info("Producer channel closed, reopening")
		if err := p.openChannel(); err != nil {
			return err
		}
	}

	err := p.channel.PublishWithContext(ctx, p.config.ExchangeName, routingKey, false, false, msg)
	if err != nil {
		return fmt.Errorf("producer: failed to publish message: %w", err)
	}
	return nil
}

// Close закрывает канал производителя. Соединением владеет ConnectionManager.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil {
		return nil
	}
	err := p.channel.Close()
	p.channel = nil
	return err
}
