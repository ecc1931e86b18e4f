package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Platform tags name the record source/sink for a pipeline run.
const (
	PlatformNative     = "native"
	PlatformSalesforce = "salesforce"
	PlatformHubSpot    = "hubspot"
)

// Record is a loosely-typed CRM row as returned by the remote REST APIs.
type Record map[string]any

// ID returns the record's external identifier, trying the common keys.
func (r Record) ID() string {
	for _, k := range []string{"Id", "id"} {
		if v, ok := r[k].(string); ok {
			return v
		}
	}
	return ""
}

// String returns the named field as a string, empty when absent.
func (r Record) String(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// Source is the remote-CRM capability the pipeline consumes: bounded
// reads, field updates, and follow-up task creation. An empty fetch
// result is a normal outcome, not an error.
type Source interface {
	FetchRecords(ctx context.Context, object string, limit int) ([]Record, error)
	UpdateRecord(ctx context.Context, object, id string, fields map[string]any) error
	CreateTask(ctx context.Context, fields map[string]any) error
}

// ErrAuthRequired signals a missing or unusable OAuth token; handlers
// map it to 401 with requires_auth so the UI can prompt a reconnect.
var ErrAuthRequired = errors.New("platform authentication required")

// APIError carries the upstream HTTP status and body text.
type APIError struct {
	Platform string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API returned status %d: %s", e.Platform, e.Status, e.Body)
}

// doJSON performs a single-attempt JSON request. There is deliberately
// no retry or backoff: every upstream call in the pipeline is one shot.
func doJSON(ctx context.Context, client *http.Client, platform, method, url string, headers map[string]string, body any, out any) error {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewBuffer(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: %s", ErrAuthRequired, string(b))
		}
		return &APIError{Platform: platform, Status: resp.StatusCode, Body: string(b)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func jsonDecode(r io.Reader, out any) error {
	return json.NewDecoder(r).Decode(out)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
