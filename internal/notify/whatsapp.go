// Package notify delivers best-effort operator and customer notifications.
// Every sender here is fired after a payment settles; failures are logged by
// the caller and never affect the committed order status.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// WhatsAppConfig holds both delivery channels. The Evolution bridge is tried
// first; the official Cloud API is the fallback.
type WhatsAppConfig struct {
	EvolutionBaseURL  string
	EvolutionInstance string
	EvolutionAPIKey   string

	CloudPhoneNumberID string
	CloudAccessToken   string
	CloudBaseURL       string // defaults to graph.facebook.com

	AdminPhone string
}

// WhatsAppNotifier sends text messages to the store admin.
type WhatsAppNotifier struct {
	cfg        WhatsAppConfig
	httpClient *http.Client
	logger     *slog.Logger
}

func NewWhatsAppNotifier(cfg WhatsAppConfig, logger *slog.Logger) *WhatsAppNotifier {
	if cfg.CloudBaseURL == "" {
		cfg.CloudBaseURL = "https://graph.facebook.com"
	}
	return &WhatsAppNotifier{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}
}

// Configured reports whether at least one channel has credentials.
func (n *WhatsAppNotifier) Configured() bool {
	return n.evolutionConfigured() || n.cloudConfigured()
}

func (n *WhatsAppNotifier) evolutionConfigured() bool {
	return n.cfg.EvolutionBaseURL != "" && n.cfg.EvolutionInstance != "" && n.cfg.EvolutionAPIKey != ""
}

func (n *WhatsAppNotifier) cloudConfigured() bool {
	return n.cfg.CloudPhoneNumberID != "" && n.cfg.CloudAccessToken != ""
}

// SendAdminAlert delivers a text to the admin phone, trying the Evolution
// bridge first and falling back to the Cloud API.
func (n *WhatsAppNotifier) SendAdminAlert(ctx context.Context, text string) error {
	if n.cfg.AdminPhone == "" {
		return errors.New("whatsapp: admin phone not configured")
	}

	if n.evolutionConfigured() {
		if err := n.sendEvolution(ctx, text); err == nil {
			return nil
		} else {
			n.logger.Warn("evolution send failed, trying cloud api", "error", err)
		}
	}

	if n.cloudConfigured() {
		return n.sendCloud(ctx, text)
	}

	return errors.New("whatsapp: no delivery channel configured")
}

func (n *WhatsAppNotifier) sendEvolution(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/message/sendText/%s", n.cfg.EvolutionBaseURL, n.cfg.EvolutionInstance)
	payload := map[string]any{
		"number": n.cfg.AdminPhone,
		"text":   text,
	}

	req, err := n.jsonRequest(ctx, url, payload)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", n.cfg.EvolutionAPIKey)

	return n.send(req, "evolution")
}

func (n *WhatsAppNotifier) sendCloud(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/v18.0/%s/messages", n.cfg.CloudBaseURL, n.cfg.CloudPhoneNumberID)
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                n.cfg.AdminPhone,
		"type":              "text",
		"text":              map[string]string{"body": text},
	}

	req, err := n.jsonRequest(ctx, url, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+n.cfg.CloudAccessToken)

	return n.send(req, "cloud")
}

func (n *WhatsAppNotifier) jsonRequest(ctx context.Context, url string, payload any) (*http.Request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("whatsapp: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (n *WhatsAppNotifier) send(req *http.Request, channel string) error {
	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp %s: %w", channel, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("whatsapp %s: status %d: %s", channel, resp.StatusCode, string(body))
	}
	return nil
}
