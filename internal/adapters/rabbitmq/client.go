package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/subwave/billing-service/internal/domain/ports"
	"github.com/subwave/billing-service/pkg/resilience"
)

// Queue names double as routing keys on the direct exchange
const (
	QueueAuthEvents         = ports.QueueAuthEvents
	QueueNotificationEvents = ports.QueueNotificationEvents

	dlxSuffix = "_dlx"
	dlqSuffix = "_dlq"
)

// Config contains configuration for the RabbitMQ connection
type Config struct {
	Host         string
	Port         string
	User         string
	Password     string
	ExchangeName string
}

// URL builds the AMQP connection URL
func (c *Config) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", c.User, c.Password, c.Host, c.Port)
}

// Client manages the AMQP connection, channel, and topology declaration.
// It reconnects with exponential backoff when the broker drops the
// connection, until Close is called.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	config  *Config
	logger  *zap.Logger
	mu      sync.Mutex
	closed  bool
}

// NewClient connects to the broker and declares the billing topology.
// Startup fails fast when the broker is unreachable.
func NewClient(config *Config, logger *zap.Logger) (*Client, error) {
	c := &Client{
		config: config,
		logger: logger,
	}

	if err := c.connect(); err != nil {
		return nil, err
	}

	go c.monitor()

	logger.Info("RabbitMQ client connected",
		zap.String("host", config.Host),
		zap.String("exchange", config.ExchangeName),
	)

	return c, nil
}

func (c *Client) connect() error {
	conn, err := amqp.Dial(c.config.URL())
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(channel, c.config.ExchangeName); err != nil {
		channel.Close()
		conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = channel
	c.mu.Unlock()

	return nil
}

// declareTopology declares the direct exchange, its dead-letter twin, the
// event queues, and their DLQs. Rejected messages dead-letter to
// <queue>_dlq on the DLX.
func declareTopology(channel *amqp.Channel, exchangeName string) error {
	dlxName := exchangeName + dlxSuffix

	if err := channel.ExchangeDeclare(exchangeName, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchangeName, err)
	}
	if err := channel.ExchangeDeclare(dlxName, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", dlxName, err)
	}

	for _, queueName := range []string{QueueAuthEvents, QueueNotificationEvents} {
		dlqName := queueName + dlqSuffix

		args := amqp.Table{
			"x-dead-letter-exchange":    dlxName,
			"x-dead-letter-routing-key": dlqName,
		}
		if _, err := channel.QueueDeclare(queueName, true, false, false, false, args); err != nil {
			return fmt.Errorf("declare queue %s: %w", queueName, err)
		}
		if err := channel.QueueBind(queueName, queueName, exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", queueName, err)
		}

		if _, err := channel.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", dlqName, err)
		}
		if err := channel.QueueBind(dlqName, dlqName, dlxName, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", dlqName, err)
		}
	}

	return nil
}

// monitor reconnects when the broker closes the connection
func (c *Client) monitor() {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		closings := c.conn.NotifyClose(make(chan *amqp.Error, 1))
		c.mu.Unlock()

		amqpErr, ok := <-closings
		if !ok || amqpErr == nil {
			// Clean shutdown
			return
		}

		c.logger.Warn("RabbitMQ connection lost, reconnecting", zap.Error(amqpErr))

		backoff := resilience.BrokerReconnectBackoff()
		for attempt := 0; ; attempt++ {
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				return
			}
			c.mu.Unlock()

			if err := c.connect(); err == nil {
				c.logger.Info("RabbitMQ reconnected", zap.Int("attempts", attempt+1))
				break
			}

			time.Sleep(backoff.NextDelay(attempt))
		}
	}
}

// Channel returns the current channel, or an error when the client is
// closed or mid-reconnect
func (c *Client) Channel() (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("rabbitmq client is closed")
	}
	if c.channel == nil || c.channel.IsClosed() {
		return nil, fmt.Errorf("rabbitmq channel is not available")
	}
	return c.channel, nil
}

// Consume opens a manual-ack consumer on the given queue with prefetch 1.
// The returned channel closes when the connection drops; callers are
// expected to call Consume again after a backoff.
func (c *Client) Consume(ctx context.Context, queueName string) (<-chan amqp.Delivery, error) {
	channel, err := c.Channel()
	if err != nil {
		return nil, err
	}

	if err := channel.Qos(1, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := channel.ConsumeWithContext(ctx, queueName, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", queueName, err)
	}

	return deliveries, nil
}

// IsConnected reports whether a usable channel is available.
// Used by the health checker.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.channel != nil && !c.channel.IsClosed()
}

// Close shuts down the connection and stops reconnecting
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
