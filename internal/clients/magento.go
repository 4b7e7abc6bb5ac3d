// Package clients holds the REST clients for the external Magento and
// MDM APIs. Both are consumed as opaque request/response functions; no
// business rules live here.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"techno-etl-service/internal/models"
)

// MagentoClient reads orders, customers and products from the Magento
// storefront list endpoints.
type MagentoClient struct {
	Client  *http.Client
	BaseURL string
	APIKey  string
}

func NewMagentoClient(baseURL, apiKey string) *MagentoClient {
	return &MagentoClient{
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
		BaseURL: baseURL,
		APIKey:  apiKey,
	}
}

// GetOrders lists orders created inside [from, to].
func (m *MagentoClient) GetOrders(ctx context.Context, from, to time.Time) (*models.ListResult[models.Order], error) {
	query := url.Values{}
	query.Set("from", from.Format("2006-01-02 15:04:05"))
	query.Set("to", to.Format("2006-01-02 15:04:05"))

	var result models.ListResult[models.Order]
	if err := m.getJSON(ctx, "/api/orders?"+query.Encode(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (m *MagentoClient) GetCustomers(ctx context.Context) (*models.ListResult[models.Customer], error) {
	var result models.ListResult[models.Customer]
	if err := m.getJSON(ctx, "/api/customers", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (m *MagentoClient) GetProducts(ctx context.Context) (*models.ListResult[models.Product], error) {
	var result models.ListResult[models.Product]
	if err := m.getJSON(ctx, "/api/products", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (m *MagentoClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	m.setHeaders(req)

	resp, err := m.Client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("magento API error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (m *MagentoClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if m.APIKey != "" {
		req.Header.Set("API_KEY", m.APIKey)
	}
}

// postJSON is shared by the MDM client; kept here so both clients use
// one request shape.
func postJSON(ctx context.Context, client *http.Client, apiKey, url string, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("API_KEY", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(raw))
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}
