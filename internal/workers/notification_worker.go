package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/subwave/billing-service/internal/domain/models"
	"github.com/subwave/billing-service/internal/domain/ports"
)

// NotificationWorker delivers user notifications to the notification
// sidecar.
type NotificationWorker struct {
	sidecar *sidecarClient
	baseURL string
}

// NewNotificationWorker creates a worker handler posting to
// {baseURL}/{user_id}/notify/ with the shared-secret header.
func NewNotificationWorker(client *http.Client, baseURL, secretToken string) *NotificationWorker {
	return &NotificationWorker{
		sidecar: newSidecarClient(client, secretToken),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// Queue returns the queue this handler consumes.
func (w *NotificationWorker) Queue() string { return ports.QueueNotificationEvents }

// HandleEvent decodes a NotificationEvent and posts the notification.
func (w *NotificationWorker) HandleEvent(ctx context.Context, body []byte) error {
	var event models.NotificationEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return &PermanentWorkerError{Reason: "malformed notification event", Err: err}
	}
	if event.UserID == "" || event.NotificationData.Topic == "" {
		return &PermanentWorkerError{Reason: "notification event missing user_id or topic"}
	}

	url := fmt.Sprintf("%s/%s/notify/", w.baseURL, event.UserID)
	payload := struct {
		NotificationData models.NotificationData `json:"notification_data"`
	}{NotificationData: event.NotificationData}

	return w.sidecar.post(ctx, url, payload)
}
