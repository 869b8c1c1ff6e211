// Package webhook forwards inbound message events to per-tenant HTTP
// endpoints, signing each delivery so the receiver can authenticate it.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	domainChatStorage "github.com/bizlinkhq/wa-engine/domains/chatstorage"
	pkgError "github.com/bizlinkhq/wa-engine/pkg/error"
	"github.com/bizlinkhq/wa-engine/pkg/utils"
)

// Payload is the body posted to the tenant's endpoint. It is serialized once
// and the same bytes are reused for every retry, so the signature stays valid
// across attempts.
type Payload struct {
	Event     string `json:"event"`
	TenantID  string `json:"tenantId"`
	From      string `json:"from"`
	To        string `json:"to"`
	Body      string `json:"body"`
	Timestamp int64  `json:"timestamp"`
	MessageID string `json:"messageId"`
}

// SettingsSource yields the tenant's webhook endpoint and secret.
type SettingsSource interface {
	GetTenantSettings(ctx context.Context, tenantID string) (*domainChatStorage.TenantSettings, error)
}

// Notifier delivers payloads with a bounded retry schedule. Delays holds the
// waits between consecutive attempts, so total attempts = len(Delays) + 1.
type Notifier struct {
	settings SettingsSource
	client   *http.Client
	Delays   []time.Duration
}

func NewNotifier(settings SettingsSource, timeout time.Duration) *Notifier {
	return &Notifier{
		settings: settings,
		client:   &http.Client{Timeout: timeout},
		Delays:   []time.Duration{1 * time.Second, 3 * time.Second, 7 * time.Second},
	}
}

// Notify posts the payload to the tenant's configured endpoint. Tenants with
// no endpoint configured are a silent no-op. Exhausted retries are reported
// to the caller but never propagate into message processing.
func (n *Notifier) Notify(ctx context.Context, tenantID string, payload Payload) error {
	settings, err := n.settings.GetTenantSettings(ctx, tenantID)
	if err != nil {
		return err
	}
	if settings == nil || settings.WebhookURL == "" {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	signature := ""
	if settings.WebhookSecret != "" {
		signature, err = utils.GetMessageDigestOrSignature(body, []byte(settings.WebhookSecret))
		if err != nil {
			return err
		}
	}

	attempts := len(n.Delays) + 1
	var lastErr error
	for attempt := 1; ; attempt++ {
		lastErr = n.post(ctx, settings.WebhookURL, body, signature)
		if lastErr == nil {
			return nil
		}
		if attempt >= attempts {
			break
		}
		logrus.WithFields(logrus.Fields{
			"tenant":  tenantID,
			"attempt": attempt,
			"url":     settings.WebhookURL,
		}).Warnf("[WEBHOOK] delivery failed, retrying: %v", lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(n.Delays[attempt-1]):
		}
	}
	return pkgError.WebhookError(fmt.Sprintf("webhook delivery to tenant %s failed after %d attempts: %v", tenantID, attempts, lastErr))
}

func (n *Notifier) post(ctx context.Context, url string, body []byte, signature string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Signature", signature)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
