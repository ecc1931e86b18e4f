package crm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/pipewise/pipewise/config"
	"github.com/pipewise/pipewise/internal/store"
)

func TestEvaluateToken(t *testing.T) {
	now := time.Now()
	window := now.Add(5 * time.Minute)
	cases := []struct {
		name      string
		expiresAt time.Time
		want      TokenState
	}{
		{"valid", now.Add(time.Hour), TokenValid},
		{"expiring soon", now.Add(2 * time.Minute), TokenExpiringSoon},
		{"expired", now.Add(-time.Minute), TokenInvalid},
		{"exactly now", now, TokenInvalid},
	}
	for _, tc := range cases {
		tok := store.Token{ExpiresAt: tc.expiresAt}
		if got := EvaluateToken(tok, now, window); got != tc.want {
			t.Fatalf("%s: EvaluateToken = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func newTestManager(t *testing.T, providers config.ProvidersConfig) (*TokenManager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewTokenManager(store.New(db), providers, 5*time.Minute), mock
}

func tokenRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "platform", "access_token", "refresh_token", "instance_url", "expires_at", "created_at",
	})
}

func TestEnsureNoTokenStored(t *testing.T) {
	m, mock := newTestManager(t, config.ProvidersConfig{})
	mock.ExpectQuery("FROM oauth_tokens").WillReturnRows(tokenRows())

	_, err := m.Ensure(context.Background(), "user-1", PlatformSalesforce)
	if !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
}

func TestEnsureValidTokenReturnedAsIs(t *testing.T) {
	m, mock := newTestManager(t, config.ProvidersConfig{})
	mock.ExpectQuery("FROM oauth_tokens").WillReturnRows(tokenRows().
		AddRow(int64(1), "user-1", "salesforce", "good-token", nil, "https://x.my.salesforce.com",
			time.Now().Add(time.Hour), time.Now()))

	tok, err := m.Ensure(context.Background(), "user-1", PlatformSalesforce)
	if err != nil {
		t.Fatalf("Ensure returned error: %v", err)
	}
	if tok.AccessToken != "good-token" {
		t.Fatalf("unexpected token: %+v", tok)
	}
}

func TestEnsureExpiredWithoutRefreshToken(t *testing.T) {
	m, mock := newTestManager(t, config.ProvidersConfig{})
	mock.ExpectQuery("FROM oauth_tokens").WillReturnRows(tokenRows().
		AddRow(int64(1), "user-1", "salesforce", "stale", nil, "https://x.my.salesforce.com",
			time.Now().Add(-time.Hour), time.Now().Add(-2*time.Hour)))

	_, err := m.Ensure(context.Background(), "user-1", PlatformSalesforce)
	if !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired for expired token, got %v", err)
	}
}

func TestEnsureExpiringSoonRefreshes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.Form.Get("grant_type") != "refresh_token" || r.Form.Get("refresh_token") != "refresh-1" {
			t.Errorf("unexpected refresh form: %v", r.Form)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh","expires_in":3600}`))
	}))
	defer ts.Close()

	providers := config.ProvidersConfig{
		Salesforce: config.SalesforceConfig{ClientID: "cid", ClientSecret: "secret", TokenURL: ts.URL},
	}
	m, mock := newTestManager(t, providers)
	mock.ExpectQuery("FROM oauth_tokens").WillReturnRows(tokenRows().
		AddRow(int64(1), "user-1", "salesforce", "old", "refresh-1", "https://x.my.salesforce.com",
			time.Now().Add(2*time.Minute), time.Now()))
	mock.ExpectQuery("INSERT INTO oauth_tokens").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(2)))

	tok, err := m.Ensure(context.Background(), "user-1", PlatformSalesforce)
	if err != nil {
		t.Fatalf("Ensure returned error: %v", err)
	}
	if tok.AccessToken != "fresh" {
		t.Fatalf("expected refreshed token, got %+v", tok)
	}
	if tok.RefreshToken != "refresh-1" {
		t.Fatalf("refresh token should be carried forward, got %q", tok.RefreshToken)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// A failed refresh on an expiring-soon token keeps the old token: it is
// still valid until actual expiry.
func TestEnsureRefreshFailureKeepsOldToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer ts.Close()

	providers := config.ProvidersConfig{
		Salesforce: config.SalesforceConfig{ClientID: "cid", ClientSecret: "secret", TokenURL: ts.URL},
	}
	m, mock := newTestManager(t, providers)
	mock.ExpectQuery("FROM oauth_tokens").WillReturnRows(tokenRows().
		AddRow(int64(1), "user-1", "salesforce", "old", "refresh-1", "https://x.my.salesforce.com",
			time.Now().Add(2*time.Minute), time.Now()))

	tok, err := m.Ensure(context.Background(), "user-1", PlatformSalesforce)
	if err != nil {
		t.Fatalf("Ensure returned error: %v", err)
	}
	if tok.AccessToken != "old" {
		t.Fatalf("expected old token to survive failed refresh, got %+v", tok)
	}
}
