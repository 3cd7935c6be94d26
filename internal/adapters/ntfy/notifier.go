// Package ntfy sends push notifications through an ntfy server.
package ntfy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Notifier implements ports.NotificationService. Each guardian subscribes
// to their own topic.
type Notifier struct {
	baseURL string
	client  *http.Client
}

// New creates a Notifier for the server at baseURL.
func New(baseURL string, client *http.Client) *Notifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Notifier{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (n *Notifier) SendPush(ctx context.Context, topic, title, body string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/"+topic, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Title", title)
	req.Header.Set("Tags", "bus")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("ntfy: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy: HTTP %d for topic %s", resp.StatusCode, topic)
	}
	return nil
}
