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

// AuthWorker delivers role-change events to the auth sidecar.
type AuthWorker struct {
	sidecar *sidecarClient
	baseURL string
}

// NewAuthWorker creates a worker handler posting to
// {baseURL}/{user_id}/role/ with the shared-secret header.
func NewAuthWorker(client *http.Client, baseURL, secretToken string) *AuthWorker {
	return &AuthWorker{
		sidecar: newSidecarClient(client, secretToken),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// Queue returns the queue this handler consumes.
func (w *AuthWorker) Queue() string { return ports.QueueAuthEvents }

// HandleEvent decodes an AuthEvent and posts the role change.
func (w *AuthWorker) HandleEvent(ctx context.Context, body []byte) error {
	var event models.AuthEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return &PermanentWorkerError{Reason: "malformed auth event", Err: err}
	}
	if event.UserID == "" || event.Role == "" {
		return &PermanentWorkerError{Reason: "auth event missing user_id or role"}
	}

	url := fmt.Sprintf("%s/%s/role/", w.baseURL, event.UserID)
	payload := struct {
		Role models.Role `json:"role"`
	}{Role: event.Role}

	return w.sidecar.post(ctx, url, payload)
}
