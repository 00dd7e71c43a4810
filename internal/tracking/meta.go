// Package tracking sends server-side conversion events to the Meta
// Conversions API. PII fields are SHA-256 hashed after normalization; click
// ids (fbc/fbp) are forwarded unhashed as the API requires.
package tracking

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dcutelaria/storefront/internal/models"
)

// Purchase is the commerce payload for a settled order.
type Purchase struct {
	Value      int64    // minor units; sent as major units
	Currency   string
	ContentIDs []string
	OrderID    string
	EventTime  time.Time

	Email string
	Phone string
	Name  string
	City  string
	State string
	Zip   string

	FBC string // click id cookie, unhashed
	FBP string // browser id cookie, unhashed
}

// MetaClient posts events to graph.facebook.com for one pixel.
type MetaClient struct {
	pixelID     string
	accessToken string
	baseURL     string
	httpClient  *http.Client
}

func NewMetaClient(pixelID, accessToken string) *MetaClient {
	return &MetaClient{
		pixelID:     pixelID,
		accessToken: accessToken,
		baseURL:     "https://graph.facebook.com/v18.0",
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// WithBaseURL overrides the endpoint, used in tests.
func (c *MetaClient) WithBaseURL(baseURL string) *MetaClient {
	c.baseURL = baseURL
	return c
}

func (c *MetaClient) Configured() bool {
	return c.pixelID != "" && c.accessToken != ""
}

// SendPurchase fires a Purchase event. Best-effort by contract: the caller
// logs failures and moves on.
func (c *MetaClient) SendPurchase(ctx context.Context, p Purchase) error {
	if !c.Configured() {
		return fmt.Errorf("tracking: pixel not configured")
	}

	eventTime := p.EventTime
	if eventTime.IsZero() {
		eventTime = time.Now()
	}

	userData := map[string]any{}
	putHashed(userData, "em", normalizeEmail(p.Email))
	putHashed(userData, "ph", models.OnlyDigits(p.Phone))
	first, last := splitName(p.Name)
	putHashed(userData, "fn", first)
	putHashed(userData, "ln", last)
	putHashed(userData, "ct", normalizeToken(p.City))
	putHashed(userData, "st", normalizeToken(p.State))
	putHashed(userData, "zp", models.OnlyDigits(p.Zip))
	if p.FBC != "" {
		userData["fbc"] = p.FBC
	}
	if p.FBP != "" {
		userData["fbp"] = p.FBP
	}

	event := map[string]any{
		"event_name":    "Purchase",
		"event_time":    eventTime.Unix(),
		"event_id":      p.OrderID,
		"action_source": "website",
		"user_data":     userData,
		"custom_data": map[string]any{
			"value":        float64(p.Value) / 100,
			"currency":     p.Currency,
			"content_ids":  p.ContentIDs,
			"content_type": "product",
		},
	}

	payload := map[string]any{
		"data": []any{event},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("tracking: encode event: %w", err)
	}

	url := fmt.Sprintf("%s/%s/events?access_token=%s", c.baseURL, c.pixelID, c.accessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("tracking: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tracking: send event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("tracking: status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func putHashed(userData map[string]any, key, value string) {
	if value == "" {
		return
	}
	userData[key] = hashSHA256(value)
}

func hashSHA256(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeToken(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(strings.ToLower(full))
	if len(parts) == 0 {
		return "", ""
	}
	first = parts[0]
	if len(parts) > 1 {
		last = parts[len(parts)-1]
	}
	return first, last
}
