package crm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/pipewise/pipewise/config"
	"github.com/pipewise/pipewise/internal/store"
)

// HubSpotClient talks to the HubSpot CRM v3 objects API with a stored
// OAuth token.
type HubSpotClient struct {
	cfg   config.HubSpotConfig
	token store.Token
	http  *http.Client
}

// NewHubSpotClient builds a client bound to one token.
func NewHubSpotClient(cfg config.HubSpotConfig, token store.Token) *HubSpotClient {
	return &HubSpotClient{cfg: cfg, token: token, http: newHTTPClient(cfg.Timeout)}
}

// hubspotProperties maps object types to the property list requested on
// reads.
var hubspotProperties = map[string]string{
	"contacts": "firstname,lastname,email,phone,jobtitle,company,hs_lead_status,hubspotscore",
	"deals":    "dealname,amount,dealstage,closedate,hs_priority,hs_deal_stage_probability",
}

// FetchRecords lists objects with a bounded limit. Zero rows is a
// normal result.
func (c *HubSpotClient) FetchRecords(ctx context.Context, object string, limit int) ([]Record, error) {
	props, ok := hubspotProperties[object]
	if !ok {
		return nil, fmt.Errorf("unsupported hubspot object: %s", object)
	}
	if limit <= 0 || limit > store.MaxBatchLimit {
		limit = store.MaxBatchLimit
	}
	endpoint := fmt.Sprintf("%s/crm/v3/objects/%s?properties=%s&limit=%d",
		strings.TrimRight(c.cfg.BaseURL, "/"), object, props, limit)

	var out struct {
		Results []struct {
			ID         string         `json:"id"`
			Properties map[string]any `json:"properties"`
		} `json:"results"`
	}
	if err := doJSON(ctx, c.http, PlatformHubSpot, http.MethodGet, endpoint, c.headers(), nil, &out); err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(out.Results))
	for _, r := range out.Results {
		rec := Record{"id": r.ID}
		for k, v := range r.Properties {
			rec[k] = v
		}
		records = append(records, rec)
	}
	return records, nil
}

// UpdateRecord PATCHes object properties.
func (c *HubSpotClient) UpdateRecord(ctx context.Context, object, id string, fields map[string]any) error {
	if id == "" {
		return fmt.Errorf("hubspot record id required")
	}
	endpoint := fmt.Sprintf("%s/crm/v3/objects/%s/%s", strings.TrimRight(c.cfg.BaseURL, "/"), object, id)
	body := map[string]any{"properties": fields}
	return doJSON(ctx, c.http, PlatformHubSpot, http.MethodPatch, endpoint, c.headers(), body, nil)
}

// CreateTask creates a follow-up task object.
func (c *HubSpotClient) CreateTask(ctx context.Context, fields map[string]any) error {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/crm/v3/objects/tasks"
	body := map[string]any{"properties": fields}
	return doJSON(ctx, c.http, PlatformHubSpot, http.MethodPost, endpoint, c.headers(), body, nil)
}

func (c *HubSpotClient) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.token.AccessToken}
}
