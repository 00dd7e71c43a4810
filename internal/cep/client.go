// Package cep looks up Brazilian postal codes against a ViaCEP-compatible
// address service to prefill street, neighborhood, city and state.
package cep

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dcutelaria/storefront/internal/models"
)

var (
	ErrInvalidCEP  = errors.New("postal code must have exactly 8 digits")
	ErrCEPNotFound = errors.New("postal code not found")
)

// Address is the prefill result for a postal code.
type Address struct {
	PostalCode   string `json:"postalCode"`
	Street       string `json:"street"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Lookup resolves a postal code. The code is validated locally before any
// network call; the service signals unknown codes with an "erro" flag rather
// than a non-2xx status.
func (c *Client) Lookup(ctx context.Context, code string) (*Address, error) {
	digits := models.OnlyDigits(code)
	if len(digits) != 8 {
		return nil, ErrInvalidCEP
	}

	url := fmt.Sprintf("%s/%s/json", c.baseURL, digits)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cep lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cep lookup failed: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var raw struct {
		CEP        string `json:"cep"`
		Logradouro string `json:"logradouro"`
		Bairro     string `json:"bairro"`
		Localidade string `json:"localidade"`
		UF         string `json:"uf"`
		Erro       any    `json:"erro"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	// the service reports "erro": true (older deployments send the string "true")
	if raw.Erro != nil && raw.Erro != false {
		return nil, ErrCEPNotFound
	}

	return &Address{
		PostalCode:   digits,
		Street:       raw.Logradouro,
		Neighborhood: raw.Bairro,
		City:         raw.Localidade,
		State:        raw.UF,
	}, nil
}
