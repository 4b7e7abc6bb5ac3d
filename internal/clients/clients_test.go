package clients

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"techno-etl-service/internal/models"
)

func TestGetOrders(t *testing.T) {
	var gotPath, gotKey string
	var gotFrom, gotTo string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("API_KEY")
		gotFrom = r.URL.Query().Get("from")
		gotTo = r.URL.Query().Get("to")
		json.NewEncoder(w).Encode(models.ListResult[models.Order]{
			Items:      []models.Order{{IncrementID: "1001", GrandTotal: 99.5}},
			TotalCount: 1,
		})
	}))
	defer server.Close()

	client := NewMagentoClient(server.URL, "secret")
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC)

	result, err := client.GetOrders(context.Background(), from, to)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if gotPath != "/api/orders" {
		t.Errorf("Expected /api/orders, got %s", gotPath)
	}
	if gotKey != "secret" {
		t.Errorf("Expected API_KEY header, got %q", gotKey)
	}
	if gotFrom != "2026-03-01 00:00:00" || gotTo != "2026-03-31 23:59:59" {
		t.Errorf("Unexpected window: from=%q to=%q", gotFrom, gotTo)
	}
	if result.TotalCount != 1 || result.Items[0].IncrementID != "1001" {
		t.Errorf("Unexpected result: %+v", result)
	}
}

func TestGetOrdersErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewMagentoClient(server.URL, "")
	if _, err := client.GetOrders(context.Background(), time.Now(), time.Now()); err == nil {
		t.Fatal("Expected error on non-200 status")
	}
}

func TestGetSourcesEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/mdm/sources" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"data":[{"code_source":"16","succursale":"Alger"},{"code":"20"}]}`))
	}))
	defer server.Close()

	client := NewMDMClient(server.URL, "")
	sources, err := client.GetSources(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("Expected 2 sources, got %d", len(sources))
	}
	if sources[0].Code() != "16" {
		t.Errorf("Expected code 16, got %q", sources[0].Code())
	}
	if sources[1].Code() != "20" {
		t.Errorf("Expected fallback code 20, got %q", sources[1].Code())
	}
	// Extra fields survive for the verbatim forward.
	if sources[0]["succursale"] != "Alger" {
		t.Errorf("Expected extra field kept, got %v", sources[0]["succursale"])
	}
}

func TestSyncSourceForwardsRecordVerbatim(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewMDMClient(server.URL, "")
	source := models.Source{"code_source": "16", "succursale": "Alger", "extraField": true}
	if err := client.SyncSource(context.Background(), source); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if received["code_source"] != "16" || received["succursale"] != "Alger" || received["extraField"] != true {
		t.Errorf("Expected verbatim record, got %v", received)
	}
}

func TestGetPricesPassThrough(t *testing.T) {
	payload := `{"data":[{"sku":"A","price":12.5}],"meta":{"count":1}}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer server.Close()

	client := NewMDMClient(server.URL, "")
	raw, err := client.GetPrices(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(raw) != payload {
		t.Errorf("Expected body passed through verbatim, got %s", raw)
	}
}

func TestSyncStocksErrorIncludesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "stock marking failed", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewMDMClient(server.URL, "")
	err := client.SyncStocks(context.Background())
	if err == nil {
		t.Fatal("Expected error")
	}
}
