// Package webhook delivers API-key lifecycle notifications to the webhook
// URL configured on a key. Delivery is strictly best-effort: failures are
// logged and never propagated to the operation that triggered them.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const httpTimeout = 5 * time.Second

// Key lifecycle event types.
const (
	EventKeyCreated = "key.created"
	EventKeyRotated = "key.rotated"
	EventKeyUpdated = "key.updated"
	EventKeyRevoked = "key.revoked"
)

// Event is the payload POSTed to a key's webhook URL. It identifies the key
// only by id and public prefix; no secret material is ever included.
type Event struct {
	Type      string    `json:"type"`
	KeyID     string    `json:"key_id"`
	Prefix    string    `json:"prefix"`
	TenantID  string    `json:"tenant_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier posts lifecycle events from detached goroutines. A nil Notifier
// is valid and does nothing, so callers don't need to guard every call site.
type Notifier struct {
	client *http.Client
	logger *slog.Logger
	wg     sync.WaitGroup
}

// New creates a Notifier.
func New(logger *slog.Logger) *Notifier {
	return &Notifier{
		client: &http.Client{Timeout: httpTimeout},
		logger: logger,
	}
}

// Notify dispatches the event to url in the background. No-op when the
// notifier is nil or the url is empty.
func (n *Notifier) Notify(url string, event Event) {
	if n == nil || url == "" {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.send(context.Background(), url, event); err != nil {
			n.logger.Warn("webhook delivery failed",
				"url", url, "event", event.Type, "key_id", event.KeyID, "error", err)
		}
	}()
}

// Flush waits for in-flight deliveries. Used at shutdown and in tests.
func (n *Notifier) Flush() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

func (n *Notifier) send(ctx context.Context, url string, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
