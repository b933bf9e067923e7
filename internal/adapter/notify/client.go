// Package notify delivers status notifications to the notification service.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/polkiloo/fooddelivery/internal/domain/model"
)

// Notifier sends a single notification.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

type payload struct {
	RecipientID string `json:"recipient_id"`
	Event       string `json:"event"`
	OrderID     string `json:"order_id,omitempty"`
	DeliveryID  string `json:"delivery_id,omitempty"`
	Status      string `json:"status,omitempty"`
}

// HTTPNotifier posts notifications to the notification service.
type HTTPNotifier struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPNotifier creates a notifier for the service at baseURL.
func NewHTTPNotifier(baseURL string, logger *slog.Logger) (*HTTPNotifier, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse notification url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("notification url must be absolute")
	}
	parsed.Path = path.Join(parsed.Path, "/api/notifications")
	return &HTTPNotifier{
		endpoint: parsed.String(),
		logger:   logger,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}, nil
}

// Notify posts the notification and fails on any non-2xx answer.
func (n *HTTPNotifier) Notify(ctx context.Context, msg model.Notification) error {
	body, err := json.Marshal(payload{
		RecipientID: msg.RecipientID,
		Event:       string(msg.Event),
		OrderID:     msg.OrderID,
		DeliveryID:  msg.DeliveryID,
		Status:      msg.Status,
	})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return fmt.Errorf("notification service: %s: %s", resp.Status, bytes.TrimSpace(text))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// LogNotifier writes notifications to the log when no service is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier constructs LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the notification.
func (n *LogNotifier) Notify(ctx context.Context, msg model.Notification) error {
	n.logger.InfoContext(ctx, "notification",
		slog.String("recipient_id", msg.RecipientID),
		slog.String("event", string(msg.Event)),
		slog.String("order_id", msg.OrderID),
		slog.String("delivery_id", msg.DeliveryID),
		slog.String("status", msg.Status),
	)
	return nil
}
