package ports

import (
	"context"

	"github.com/subwave/billing-service/internal/domain/models"
)

// Queue names for outbound events. Routing keys equal queue names on the
// billing exchange.
const (
	QueueAuthEvents         = "auth_events"
	QueueNotificationEvents = "notification_events"
)

// AuthEventPublisher publishes role-change events for the auth sidecar.
// Callers log publish failures but never fail the originating command on
// them; the database is the source of truth and events can be re-emitted.
type AuthEventPublisher interface {
	PublishRoleChange(ctx context.Context, event models.AuthEvent) error
}

// NotificationPublisher publishes user notification events for the
// notification sidecar. Same failure contract as AuthEventPublisher.
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, event models.NotificationEvent) error
}
