package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// sidecarClient posts JSON payloads to a sidecar service and classifies
// the response into worker errors: 2xx succeeds, 4xx is permanent, 5xx
// and transport failures are temporary.
type sidecarClient struct {
	client      *http.Client
	secretToken string
}

func newSidecarClient(client *http.Client, secretToken string) *sidecarClient {
	return &sidecarClient{
		client:      client,
		secretToken: secretToken,
	}
}

func (c *sidecarClient) post(ctx context.Context, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &PermanentWorkerError{Reason: "encode sidecar payload", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &PermanentWorkerError{Reason: "build sidecar request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Secret-Token", c.secretToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return &TemporaryWorkerError{Reason: "sidecar unreachable", Err: err}
	}
	defer resp.Body.Close()

	// Drain so the connection returns to the pool.
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &PermanentWorkerError{Reason: fmt.Sprintf("sidecar rejected request with status %d", resp.StatusCode)}
	default:
		return &TemporaryWorkerError{Reason: fmt.Sprintf("sidecar returned status %d", resp.StatusCode)}
	}
}
