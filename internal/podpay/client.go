// Package podpay is the server-side adapter for the PodPay PIX gateway. It
// owns the secret credential and maps the gateway's loosely-shaped JSON into
// canonical types.
package podpay

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dcutelaria/storefront/internal/models"
	"github.com/dcutelaria/storefront/internal/taxid"
)

var (
	ErrNotConfigured = errors.New("payment gateway not configured")
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrMissingEmail  = errors.New("customer email is required")
	ErrEmptyItems    = errors.New("at least one item is required")
	ErrNoPixPayload  = errors.New("gateway returned a transaction without a pix code")
)

// APIError carries the gateway's own message for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("podpay: status %d: %s", e.StatusCode, e.Message)
}

// Transaction is the canonical view of a gateway transaction.
type Transaction struct {
	TransactionID string     `json:"transactionId"`
	Status        string     `json:"status"`
	Amount        int64      `json:"amount"`
	Pix           Pix        `json:"pix"`
	PaidAt        *time.Time `json:"paidAt,omitempty"`
	CreatedAt     string     `json:"createdAt,omitempty"`
}

// Pix holds the payable artifacts returned on transaction creation.
type Pix struct {
	QRCode      string `json:"qrCode"`
	QRCodeImage string `json:"qrCodeImage,omitempty"`
	CopyPaste   string `json:"copyPaste"`
	ExpiresAt   string `json:"expiresAt,omitempty"`
}

// Item is a normalized order line forwarded to the gateway.
type Item struct {
	Title     string `json:"title"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	Tangible  bool   `json:"tangible"`
}

// Client talks to the PodPay REST API with HTTP Basic auth
// (public key : secret key). The secret never leaves this package.
type Client struct {
	baseURL    string
	publicKey  string
	secretKey  string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(baseURL, publicKey, secretKey string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		publicKey: publicKey,
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// Configured reports whether both keys are present. Callers treat a false
// result as a configuration error, never as a request validation error.
func (c *Client) Configured() bool {
	return c.publicKey != "" && c.secretKey != ""
}

func (c *Client) authHeader() string {
	token := base64.StdEncoding.EncodeToString([]byte(c.publicKey + ":" + c.secretKey))
	return "Basic " + token
}

// CreateTransaction creates a PIX charge. Validation failures are returned
// before any network call is made.
func (c *Client) CreateTransaction(ctx context.Context, amount int64, customer models.Customer, items []Item) (*Transaction, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if customer.Email == "" {
		return nil, ErrMissingEmail
	}
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}

	document := models.OnlyDigits(customer.Document)
	docType := "cpf"
	if taxid.Classify(document) == taxid.KindCNPJ {
		docType = "cnpj"
	}

	payload := map[string]any{
		"amount":        amount,
		"paymentMethod": "pix",
		"customer": map[string]any{
			"name":  customer.Name,
			"email": customer.Email,
			"phone": models.OnlyDigits(customer.Phone),
			"document": map[string]string{
				"number": document,
				"type":   docType,
			},
		},
		"items": items,
		"pix": map[string]any{
			"expiresInDays": 1,
		},
	}

	body, err := c.post(ctx, "/v1/transactions", payload)
	if err != nil {
		return nil, err
	}

	tx, err := parseTransaction(body)
	if err != nil {
		return nil, err
	}
	// a charge the buyer cannot pay is not a success, whatever the HTTP status
	if tx.Pix.CopyPaste == "" {
		return nil, fmt.Errorf("%w (transaction %s)", ErrNoPixPayload, tx.TransactionID)
	}
	return tx, nil
}

// GetTransaction fetches the current state of a transaction by id.
func (c *Client) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if id == "" {
		return nil, errors.New("transaction id is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/transactions/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader())
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	return parseTransaction(body)
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("podpay request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gatewayMessage(body)
		c.logger.Error("podpay returned error",
			"status", resp.StatusCode,
			"path", req.URL.Path,
			"message", msg,
		)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	return body, nil
}

// gatewayMessage pulls a human-readable message out of an error body,
// tolerating the handful of shapes the gateway is known to use.
func gatewayMessage(body []byte) string {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "payment gateway error"
	}
	for _, key := range []string{"message", "error", "errorMessage", "error_message"} {
		if s, ok := raw[key].(string); ok && s != "" {
			return s
		}
	}
	return "payment gateway error"
}
