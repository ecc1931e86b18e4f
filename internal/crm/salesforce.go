package crm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pipewise/pipewise/config"
	"github.com/pipewise/pipewise/internal/store"
)

// SalesforceClient talks to the Salesforce REST API with a stored OAuth
// token. Reads go through the SOQL query endpoint, writes through the
// sobjects endpoints.
type SalesforceClient struct {
	cfg   config.SalesforceConfig
	token store.Token
	http  *http.Client
}

// NewSalesforceClient builds a client bound to one token.
func NewSalesforceClient(cfg config.SalesforceConfig, token store.Token) (*SalesforceClient, error) {
	if token.InstanceURL == "" {
		return nil, fmt.Errorf("%w: salesforce token has no instance url", ErrAuthRequired)
	}
	return &SalesforceClient{cfg: cfg, token: token, http: newHTTPClient(cfg.Timeout)}, nil
}

// soqlFields maps the supported object types to the fields the agents
// prompt with.
var soqlFields = map[string]string{
	"Lead":        "Id, FirstName, LastName, Email, Phone, Title, Company, LeadSource, Status, Rating",
	"Contact":     "Id, FirstName, LastName, Email, Phone, Title, Department, Account.Name",
	"Opportunity": "Id, Name, Amount, StageName, Probability, CloseDate, Account.Name",
}

// FetchRecords runs a bounded SOQL query. Zero rows is a normal result.
func (c *SalesforceClient) FetchRecords(ctx context.Context, object string, limit int) ([]Record, error) {
	fields, ok := soqlFields[object]
	if !ok {
		return nil, fmt.Errorf("unsupported salesforce object: %s", object)
	}
	if limit <= 0 || limit > store.MaxBatchLimit {
		limit = store.MaxBatchLimit
	}
	soql := fmt.Sprintf("SELECT %s FROM %s ORDER BY LastModifiedDate DESC LIMIT %d", fields, object, limit)
	endpoint := fmt.Sprintf("%s/services/data/%s/query/?q=%s",
		strings.TrimRight(c.token.InstanceURL, "/"), c.cfg.QueryVersion, url.QueryEscape(soql))

	var out struct {
		TotalSize int      `json:"totalSize"`
		Records   []Record `json:"records"`
	}
	if err := doJSON(ctx, c.http, PlatformSalesforce, http.MethodGet, endpoint, c.headers(), nil, &out); err != nil {
		return nil, err
	}
	return out.Records, nil
}

// UpdateRecord PATCHes mutable fields on one sobject.
func (c *SalesforceClient) UpdateRecord(ctx context.Context, object, id string, fields map[string]any) error {
	if id == "" {
		return fmt.Errorf("salesforce record id required")
	}
	endpoint := fmt.Sprintf("%s/services/data/%s/sobjects/%s/%s",
		strings.TrimRight(c.token.InstanceURL, "/"), c.cfg.SObjectVersion, object, id)
	return doJSON(ctx, c.http, PlatformSalesforce, http.MethodPatch, endpoint, c.headers(), fields, nil)
}

// CreateTask creates a follow-up Task sobject.
func (c *SalesforceClient) CreateTask(ctx context.Context, fields map[string]any) error {
	endpoint := fmt.Sprintf("%s/services/data/%s/sobjects/Task",
		strings.TrimRight(c.token.InstanceURL, "/"), c.cfg.SObjectVersion)
	return doJSON(ctx, c.http, PlatformSalesforce, http.MethodPost, endpoint, c.headers(), fields, nil)
}

func (c *SalesforceClient) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.token.AccessToken}
}
