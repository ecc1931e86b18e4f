package agent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/pipewise/pipewise/config"
	"github.com/pipewise/pipewise/internal/crm"
	"github.com/pipewise/pipewise/internal/store"
)

type stubProvider struct {
	calls int32
	reply string
	err   error
}

func (p *stubProvider) Generate(ctx context.Context, system, user string) (string, error) {
	atomic.AddInt32(&p.calls, 1)
	if p.err != nil {
		return "", p.err
	}
	return p.reply, nil
}

func (p *stubProvider) callCount() int { return int(atomic.LoadInt32(&p.calls)) }

func newTestPipeline(t *testing.T, provider Provider) (*Pipeline, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	st := store.New(db)
	cfg := config.AgentsConfig{}.Normalize()
	tokens := crm.NewTokenManager(st, config.ProvidersConfig{}, cfg.TokenRefreshWindow)
	return NewPipeline(st, provider, tokens, config.ProvidersConfig{}, cfg, nil), mock
}

func expectStart(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("INSERT INTO ai_agent_executions").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("exec-1"))
}

func expectFinish(mock sqlmock.Sqlmock) {
	mock.ExpectExec("UPDATE ai_agent_executions").
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func contactRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "company_id", "first_name", "last_name", "email", "phone",
		"title", "department", "lead_score", "status", "tags", "salesforce_id", "hubspot_id",
		"created_at", "updated_at",
	})
}

// An empty batch must complete without a single LLM call and report
// zero confidence.
func TestPipelineNoRecordsShortCircuit(t *testing.T) {
	provider := &stubProvider{reply: `{"newScore": 90}`}
	p, mock := newTestPipeline(t, provider)

	expectStart(mock)
	mock.ExpectQuery("FROM contacts").WillReturnRows(contactRows())
	expectFinish(mock)

	res, err := p.Run(context.Background(), "user-1", TypeLeadIntelligence, Request{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if provider.callCount() != 0 {
		t.Fatalf("expected no LLM calls for empty batch, got %d", provider.callCount())
	}
	if res.Confidence != 0 || res.RecordsAnalyzed != 0 || res.ActionsExecuted != 0 {
		t.Fatalf("unexpected empty-batch result: %+v", res)
	}
	if !res.Success || res.Status != StatusOK {
		t.Fatalf("empty batch should succeed with status ok: %+v", res)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// One contact, actions disabled: exactly one LLM call, no writes, and a
// score inside [0,100].
func TestPipelineAnalyzeWithoutActions(t *testing.T) {
	provider := &stubProvider{reply: "```json\n{\"newScore\": 87, \"priority\": \"High\", \"status\": \"qualified\"}\n```"}
	p, mock := newTestPipeline(t, provider)

	now := time.Now()
	expectStart(mock)
	mock.ExpectQuery("FROM contacts").WillReturnRows(contactRows().
		AddRow("c-1", "user-1", nil, "Jane", "Doe", "jane@example.com", nil, "VP Sales", nil,
			42, "working", []byte("{}"), nil, nil, now, now))
	expectFinish(mock)

	res, err := p.Run(context.Background(), "user-1", TypeLeadIntelligence, Request{EnableActions: false})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if provider.callCount() != 1 {
		t.Fatalf("expected exactly one LLM call, got %d", provider.callCount())
	}
	if res.RecordsAnalyzed != 1 || res.ActionsExecuted != 0 || len(res.Actions) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	lead, ok := res.Analyses[0].Analysis.(*LeadAnalysis)
	if !ok {
		t.Fatalf("expected LeadAnalysis, got %T", res.Analyses[0].Analysis)
	}
	if lead.NewScore < 0 || lead.NewScore > 100 {
		t.Fatalf("score out of range: %d", lead.NewScore)
	}
	if res.Status != StatusOK || res.Confidence != 0.9 {
		t.Fatalf("expected clean run, got status=%s confidence=%v", res.Status, res.Confidence)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// An unparseable model reply yields a degraded run carrying the
// fallback analysis, not an error.
func TestPipelineDegradedOnGarbageReply(t *testing.T) {
	provider := &stubProvider{reply: "I cannot answer that."}
	p, mock := newTestPipeline(t, provider)

	now := time.Now()
	expectStart(mock)
	mock.ExpectQuery("FROM contacts").WillReturnRows(contactRows().
		AddRow("c-1", "user-1", nil, "Jane", "Doe", nil, nil, nil, nil,
			42, "working", []byte("{}"), nil, nil, now, now))
	expectFinish(mock)

	res, err := p.Run(context.Background(), "user-1", TypeLeadIntelligence, Request{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if res.Status != StatusDegraded {
		t.Fatalf("expected degraded status, got %s", res.Status)
	}
	if !res.Analyses[0].Degraded {
		t.Fatalf("record analysis should be marked degraded")
	}
	if res.Confidence != 0.3 {
		t.Fatalf("degraded confidence should be 0.3, got %v", res.Confidence)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// An expired external token must fail the run before any LLM call.
func TestPipelineExpiredTokenBeforeLLM(t *testing.T) {
	provider := &stubProvider{reply: `{"newScore": 90}`}
	p, mock := newTestPipeline(t, provider)

	expectStart(mock)
	mock.ExpectQuery("FROM oauth_tokens").WillReturnRows(sqlmock.NewRows([]string{
		"id", "user_id", "platform", "access_token", "refresh_token", "instance_url", "expires_at", "created_at",
	}).AddRow(int64(1), "user-1", "salesforce", "stale", nil, "https://example.my.salesforce.com",
		time.Now().Add(-time.Hour), time.Now().Add(-2*time.Hour)))
	expectFinish(mock)

	_, err := p.Run(context.Background(), "user-1", TypeLeadIntelligence, Request{Platform: "salesforce"})
	if !errors.Is(err, crm.ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
	if provider.callCount() != 0 {
		t.Fatalf("expected no LLM calls after auth failure, got %d", provider.callCount())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// Requested limits above the cap are clamped before the fetch.
func TestPipelineLimitClamped(t *testing.T) {
	provider := &stubProvider{reply: `{"newScore": 50}`}
	p, mock := newTestPipeline(t, provider)

	expectStart(mock)
	mock.ExpectQuery("FROM contacts").
		WithArgs("user-1", store.MaxBatchLimit).
		WillReturnRows(contactRows())
	expectFinish(mock)

	if _, err := p.Run(context.Background(), "user-1", TypeLeadIntelligence, Request{Limit: 500}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAggregateConfidence(t *testing.T) {
	analyses := []RecordAnalysis{
		{Confidence: 0.9},
		{Confidence: 0.3, Degraded: true},
		{Confidence: 0, Error: "timeout"},
	}
	got := aggregateConfidence(analyses)
	want := (0.9 + 0.3 + 0) / 3
	if got != want {
		t.Fatalf("aggregateConfidence = %v, want %v", got, want)
	}
	if aggregateConfidence(nil) != 0 {
		t.Fatalf("empty aggregate should be 0")
	}
}
