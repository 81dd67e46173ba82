package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/therealutkarshpriyadarshi/shortform/internal/config"
	"github.com/therealutkarshpriyadarshi/shortform/internal/logging"
	"github.com/therealutkarshpriyadarshi/shortform/pkg/models"
)

// Event is the JSON body posted to every endpoint
type Event struct {
	Event     string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Render    *models.Render `json:"render"`
}

// Notifier posts signed render events to the configured endpoints
type Notifier struct {
	client   *http.Client
	urls     []string
	secret   string
	attempts int
	delay    time.Duration
	log      *logging.Logger
}

// NewNotifier creates a notifier from cfg
func NewNotifier(cfg config.NotifyConfig, log *logging.Logger) *Notifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	return &Notifier{
		client:   &http.Client{Timeout: timeout},
		urls:     cfg.URLs,
		secret:   cfg.Secret,
		attempts: attempts,
		delay:    cfg.RetryDelay,
		log:      log,
	}
}

// Enabled reports whether any endpoint is configured
func (n *Notifier) Enabled() bool {
	return len(n.urls) > 0
}

// Notify delivers event for render to every endpoint. Each endpoint gets up
// to MaxAttempts tries; the returned error joins the endpoints that never
// accepted the event.
func (n *Notifier) Notify(ctx context.Context, event string, render *models.Render) error {
	if !n.Enabled() {
		return nil
	}

	payload, err := json.Marshal(Event{
		Event:     event,
		Timestamp: time.Now().UTC(),
		Render:    render,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	deliveryID := uuid.New().String()
	var errs []error
	for _, url := range n.urls {
		if err := n.deliverWithRetry(ctx, url, event, deliveryID, payload); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", url, err))
		}
	}
	return errors.Join(errs...)
}

func (n *Notifier) deliverWithRetry(ctx context.Context, url, event, deliveryID string, payload []byte) error {
	log := n.log.WithFields(map[string]interface{}{
		"url":         url,
		"event":       event,
		"delivery_id": deliveryID,
	})

	var err error
	for attempt := 1; attempt <= n.attempts; attempt++ {
		if err = n.deliver(ctx, url, event, deliveryID, payload); err == nil {
			log.Debug("webhook_delivered")
			return nil
		}
		log.WithError(err).WithField("attempt", attempt).Warn("webhook_delivery_failed")

		if attempt == n.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(n.delay * time.Duration(attempt)):
		}
	}
	return err
}

// deliver attempts to deliver a webhook once
func (n *Notifier) deliver(ctx context.Context, url, event, deliveryID string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Shortform-Webhook/1.0")
	req.Header.Set("X-Webhook-Event", event)
	req.Header.Set("X-Webhook-Delivery", deliveryID)

	if n.secret != "" {
		req.Header.Set("X-Webhook-Signature", Sign(payload, n.secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("endpoint returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// Sign returns the HMAC-SHA256 signature header value for payload
func Sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

// Verify checks a signature produced by Sign
func Verify(payload []byte, secret, signature string) bool {
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(signature))
}
