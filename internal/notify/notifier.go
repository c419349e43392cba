// Package notify delivers outbound push messages to customers through an
// external notification endpoint. Delivery is best effort: callers treat
// failures as log-only.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Notifier pushes a message to a target user.
type Notifier interface {
	Notify(ctx context.Context, target, message string) error
}

// Noop discards every notification. Used when no endpoint is configured.
type Noop struct{}

func (Noop) Notify(context.Context, string, string) error { return nil }

// HTTPNotifier posts notifications to an external endpoint, wrapped in a
// circuit breaker so a dead endpoint fails fast instead of tying up
// goroutines on timeouts.
type HTTPNotifier struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewHTTPNotifier creates a notifier for the given endpoint URL.
func NewHTTPNotifier(url string) *HTTPNotifier {
	settings := gobreaker.Settings{
		Name:    "notify",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &HTTPNotifier{
		url:     url,
		client:  &http.Client{Timeout: 5 * time.Second},
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

type notifyPayload struct {
	Target  string `json:"target"`
	Message string `json:"message"`
}

func (n *HTTPNotifier) Notify(ctx context.Context, target, message string) error {
	_, err := n.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, n.post(ctx, target, message)
	})
	return err
}

func (n *HTTPNotifier) post(ctx context.Context, target, message string) error {
	body, err := json.Marshal(notifyPayload{Target: target, Message: message})
	if err != nil {
		return fmt.Errorf("marshal notification failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notification request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification endpoint returned %d", resp.StatusCode)
	}
	return nil
}
