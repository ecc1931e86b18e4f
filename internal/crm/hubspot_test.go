package crm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pipewise/pipewise/config"
	"github.com/pipewise/pipewise/internal/store"
)

func hsTestClient(t *testing.T, handler http.HandlerFunc) *HubSpotClient {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	cfg := config.HubSpotConfig{BaseURL: ts.URL, Timeout: 5 * time.Second}
	return NewHubSpotClient(cfg, store.Token{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour)})
}

func TestHubSpotFetchRecordsFlattensProperties(t *testing.T) {
	client := hsTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/crm/v3/objects/contacts" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("limit") != "10" {
			t.Errorf("unexpected limit: %s", r.URL.Query().Get("limit"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"id": "101", "properties": map[string]any{"firstname": "Jane", "lastname": "Doe"}},
			},
		})
	})

	records, err := client.FetchRecords(context.Background(), "contacts", 10)
	if err != nil {
		t.Fatalf("FetchRecords: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].ID() != "101" || records[0].String("firstname") != "Jane" {
		t.Fatalf("properties not flattened: %+v", records[0])
	}
}

func TestHubSpotFetchUnauthorized(t *testing.T) {
	client := hsTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"category":"EXPIRED_AUTHENTICATION"}`, http.StatusUnauthorized)
	})
	_, err := client.FetchRecords(context.Background(), "deals", 10)
	if !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired on 401, got %v", err)
	}
}

func TestHubSpotUpdateRecordWrapsProperties(t *testing.T) {
	client := hsTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/crm/v3/objects/deals/7" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["properties"]["hs_priority"] != "High" {
			t.Errorf("unexpected body: %v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "7"})
	})
	if err := client.UpdateRecord(context.Background(), "deals", "7", map[string]any{"hs_priority": "High"}); err != nil {
		t.Fatalf("UpdateRecord: %v", err)
	}
}

func TestHubSpotAPIErrorCarriesStatus(t *testing.T) {
	client := hsTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"rate limited"}`, http.StatusTooManyRequests)
	})
	_, err := client.FetchRecords(context.Background(), "contacts", 10)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusTooManyRequests || apiErr.Platform != PlatformHubSpot {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}
