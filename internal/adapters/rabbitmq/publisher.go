package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/subwave/billing-service/internal/domain/models"
	"github.com/subwave/billing-service/pkg/observability"
	"github.com/subwave/billing-service/pkg/timeutil"
)

// Publisher sends JSON events to the billing exchange with persistent
// delivery. Routing keys equal queue names on the direct exchange.
type Publisher struct {
	client   *Client
	logger   *zap.Logger
	exchange string
}

// NewPublisher creates a publisher bound to the client's exchange
func NewPublisher(client *Client, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:   client,
		logger:   logger,
		exchange: client.config.ExchangeName,
	}
}

// Publish marshals event to JSON and publishes it under routingKey
func (p *Publisher) Publish(ctx context.Context, routingKey string, event interface{}) error {
	body, err := json.Marshal(event)
	if err != nil {
		observability.RecordBrokerPublish(routingKey, false)
		return fmt.Errorf("marshal event: %w", err)
	}

	channel, err := p.client.Channel()
	if err != nil {
		observability.RecordBrokerPublish(routingKey, false)
		return err
	}

	err = channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    timeutil.Now(),
		Body:         body,
	})
	if err != nil {
		observability.RecordBrokerPublish(routingKey, false)
		return fmt.Errorf("publish to %s: %w", routingKey, err)
	}

	observability.RecordBrokerPublish(routingKey, true)

	p.logger.Debug("Event published",
		zap.String("routing_key", routingKey),
		zap.Int("bytes", len(body)),
	)

	return nil
}

// AuthEventPublisher implements ports.AuthEventPublisher over the auth
// events queue
type AuthEventPublisher struct {
	publisher *Publisher
}

// NewAuthEventPublisher creates a publisher for role-change events
func NewAuthEventPublisher(client *Client, logger *zap.Logger) *AuthEventPublisher {
	return &AuthEventPublisher{publisher: NewPublisher(client, logger)}
}

// PublishRoleChange sends a role-change event for the auth sidecar
func (p *AuthEventPublisher) PublishRoleChange(ctx context.Context, event models.AuthEvent) error {
	return p.publisher.Publish(ctx, QueueAuthEvents, event)
}

// NotificationPublisher implements ports.NotificationPublisher over the
// notification events queue
type NotificationPublisher struct {
	publisher *Publisher
}

// NewNotificationPublisher creates a publisher for user notifications
func NewNotificationPublisher(client *Client, logger *zap.Logger) *NotificationPublisher {
	return &NotificationPublisher{publisher: NewPublisher(client, logger)}
}

// PublishNotification sends a notification event for the notification sidecar
func (p *NotificationPublisher) PublishNotification(ctx context.Context, event models.NotificationEvent) error {
	return p.publisher.Publish(ctx, QueueNotificationEvents, event)
}
