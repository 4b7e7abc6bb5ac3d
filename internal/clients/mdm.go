package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"techno-etl-service/internal/models"
)

// MDMClient drives the internal MDM stock endpoints.
type MDMClient struct {
	Client  *http.Client
	BaseURL string
	APIKey  string
}

func NewMDMClient(baseURL, apiKey string) *MDMClient {
	return &MDMClient{
		Client: &http.Client{
			Timeout: 60 * time.Second, // stock marking can be slow on large catalogs
		},
		BaseURL: baseURL,
		APIKey:  apiKey,
	}
}

// SyncStocks marks the MDM stocks ready for synchronization.
func (m *MDMClient) SyncStocks(ctx context.Context) error {
	return postJSON(ctx, m.Client, m.APIKey, m.BaseURL+"/api/mdm/sync-stocks", nil, nil)
}

// GetSources lists the stock sources to synchronize.
func (m *MDMClient) GetSources(ctx context.Context) ([]models.Source, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.BaseURL+"/api/mdm/sources", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.APIKey != "" {
		req.Header.Set("API_KEY", m.APIKey)
	}

	resp, err := m.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("MDM API error (status %d): %s", resp.StatusCode, string(body))
	}

	var envelope struct {
		Data []models.Source `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse sources: %w", err)
	}
	return envelope.Data, nil
}

// SyncSource synchronizes one source; the record is forwarded verbatim.
func (m *MDMClient) SyncSource(ctx context.Context, source models.Source) error {
	return postJSON(ctx, m.Client, m.APIKey, m.BaseURL+"/api/mdm/sync/source", source, nil)
}

// MarkSyncSuccess clears the needs-sync marker after a sync batch.
func (m *MDMClient) MarkSyncSuccess(ctx context.Context) error {
	return postJSON(ctx, m.Client, m.APIKey, m.BaseURL+"/api/mdm/sync/success", nil, nil)
}

// GetPrices returns the MDM price list as-is for the prices grid.
func (m *MDMClient) GetPrices(ctx context.Context) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.BaseURL+"/api/mdm/prices", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.APIKey != "" {
		req.Header.Set("API_KEY", m.APIKey)
	}

	resp, err := m.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("MDM API error (status %d): %s", resp.StatusCode, string(body))
	}
	return json.RawMessage(body), nil
}
