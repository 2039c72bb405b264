// Package notify delivers crawl failure notices to an external channel
// through an incoming-webhook URL. Notification failures are reported to
// the caller, who logs them; they never fail a crawl.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sitedex/sitedex/internal/domain"
	"github.com/sitedex/sitedex/internal/utils"
)

// New returns a webhook notifier when a URL is configured, else the no-op
// notifier.
func New(url string, httpClient *http.Client, log *utils.Logger) domain.Notifier {
	if url == "" {
		return Nop{}
	}
	return NewWebhook(url, httpClient, log)
}

// Nop swallows notifications.
type Nop struct{}

func (Nop) Notify(ctx context.Context, message string) error { return nil }

// Webhook POSTs notices as {"text": message} JSON, the shape incoming
// webhooks of the usual chat services accept.
type Webhook struct {
	httpClient *http.Client
	url        string
	log        *utils.Logger
}

// NewWebhook creates a notifier posting to the given webhook URL.
func NewWebhook(url string, httpClient *http.Client, log *utils.Logger) *Webhook {
	return &Webhook{
		httpClient: httpClient,
		url:        url,
		log:        log.WithComponent("notify"),
	}
}

func (w *Webhook) Notify(ctx context.Context, message string) error {
	payload, err := json.Marshal(map[string]string{"text": message})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	w.log.Debug().Str("webhook", w.url).Msg("sending notification")
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver notification: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook answered status %d", resp.StatusCode)
	}
	return nil
}
