package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/pipewise/pipewise/config"
	"github.com/pipewise/pipewise/internal/agent"
	"github.com/pipewise/pipewise/internal/crm"
	"github.com/pipewise/pipewise/internal/store"
)

type fixedProvider struct{ reply string }

func (p fixedProvider) Generate(ctx context.Context, system, user string) (string, error) {
	return p.reply, nil
}

func newAgentsHandler(t *testing.T, reply string) (*AgentsHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	st := store.New(db)
	cfg := config.AgentsConfig{}.Normalize()
	tokens := crm.NewTokenManager(st, config.ProvidersConfig{}, cfg.TokenRefreshWindow)
	pipe := agent.NewPipeline(st, fixedProvider{reply: reply}, tokens, config.ProvidersConfig{}, cfg, nil)
	return &AgentsHandler{Store: st, Pipeline: pipe}, mock
}

func runContext(t *testing.T, agentType, payload string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/agents/"+agentType+"/run", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("type")
	ctx.SetParamValues(agentType)
	ctx.Set("user_id", "user-1")
	return ctx, rec
}

func TestRunUnknownAgentType(t *testing.T) {
	h, _ := newAgentsHandler(t, "{}")
	ctx, _ := runContext(t, "mystery-agent", `{}`)
	err := h.run(ctx)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 http error, got %#v", err)
	}
}

func TestRunAgentReturnsResult(t *testing.T) {
	h, mock := newAgentsHandler(t, `{"newScore": 71, "priority": "Medium"}`)
	now := time.Now()
	mock.ExpectQuery("INSERT INTO ai_agent_executions").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("exec-1"))
	mock.ExpectQuery("FROM contacts").WillReturnRows(sqlmock.NewRows([]string{
		"id", "user_id", "company_id", "first_name", "last_name", "email", "phone",
		"title", "department", "lead_score", "status", "tags", "salesforce_id", "hubspot_id",
		"created_at", "updated_at",
	}).AddRow("c-1", "user-1", nil, "Jane", "Doe", nil, nil, nil, nil,
		40, "working", []byte("{}"), nil, nil, now, now))
	mock.ExpectExec("UPDATE ai_agent_executions").WillReturnResult(sqlmock.NewResult(0, 1))

	ctx, rec := runContext(t, "lead-intelligence", `{"enable_actions": false}`)
	if err := h.run(ctx); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var res agent.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("response decode: %v", err)
	}
	if res.RecordsAnalyzed != 1 || res.ActionsExecuted != 0 || res.Status != agent.StatusOK {
		t.Fatalf("unexpected result: %+v", res)
	}
}

// A missing platform token turns into a 401 with requires_auth so the
// UI can prompt a reconnect.
func TestRunAgentAuthRequired(t *testing.T) {
	h, mock := newAgentsHandler(t, `{}`)
	mock.ExpectQuery("INSERT INTO ai_agent_executions").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("exec-1"))
	mock.ExpectQuery("FROM oauth_tokens").WillReturnRows(sqlmock.NewRows([]string{
		"id", "user_id", "platform", "access_token", "refresh_token", "instance_url", "expires_at", "created_at",
	}))
	mock.ExpectExec("UPDATE ai_agent_executions").WillReturnResult(sqlmock.NewResult(0, 1))

	ctx, rec := runContext(t, "lead-intelligence", `{"platform": "salesforce"}`)
	if err := h.run(ctx); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var resp AuthRequiredResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response decode: %v", err)
	}
	if !resp.RequiresAuth || resp.Platform != "salesforce" {
		t.Fatalf("unexpected auth response: %+v", resp)
	}
}

func TestUpsertConfigValidatesType(t *testing.T) {
	h, _ := newAgentsHandler(t, "{}")
	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/api/agents/config", strings.NewReader(`{"agent_type":"bogus"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", "user-1")

	err := h.upsertConfig(ctx)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 http error, got %#v", err)
	}
}
