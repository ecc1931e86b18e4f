package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/pipewise/pipewise/config"
	"github.com/pipewise/pipewise/internal/crm"
	"github.com/pipewise/pipewise/internal/store"
	"github.com/pipewise/pipewise/internal/telemetry"
)

// Pipeline runs one agent over a batch of records: fetch, analyze each
// record with one LLM call, optionally write the verdicts back, and
// persist an audit row. Record analyses fan out over a bounded worker
// pool; results keep fetch order.
type Pipeline struct {
	Store     *store.Store
	Provider  Provider
	Executor  *Executor
	Tokens    *crm.TokenManager
	Providers config.ProvidersConfig
	Agents    config.AgentsConfig
	Telemetry *telemetry.Telemetry
	Logger    *log.Logger

	semaphore chan struct{}
}

// NewPipeline wires the pipeline with a worker pool of cfg.MaxConcurrent.
func NewPipeline(st *store.Store, provider Provider, tokens *crm.TokenManager, providers config.ProvidersConfig, agents config.AgentsConfig, tele *telemetry.Telemetry) *Pipeline {
	agents = agents.Normalize()
	return &Pipeline{
		Store:     st,
		Provider:  provider,
		Executor:  NewExecutor(st, tele),
		Tokens:    tokens,
		Providers: providers,
		Agents:    agents,
		Telemetry: tele,
		Logger:    log.New(log.Writer(), "[AGENT] ", log.LstdFlags),
		semaphore: make(chan struct{}, agents.MaxConcurrent),
	}
}

// Run executes one agent invocation for the user. Auth failures on
// external platforms surface as crm.ErrAuthRequired before any LLM
// call is made; the audit row still records the failed run.
func (p *Pipeline) Run(ctx context.Context, userID string, t Type, req Request) (*Result, error) {
	start := time.Now()
	platform := req.Platform
	if platform == "" {
		platform = crm.PlatformNative
	}
	if platform != crm.PlatformNative && platform != crm.PlatformSalesforce && platform != crm.PlatformHubSpot {
		return nil, fmt.Errorf("unsupported platform: %s", platform)
	}
	limit := req.Limit
	if limit <= 0 || limit > p.Agents.BatchLimit {
		limit = p.Agents.BatchLimit
	}

	input, _ := json.Marshal(map[string]any{
		"platform":       platform,
		"enable_actions": req.EnableActions,
		"limit":          limit,
	})
	execID, err := p.Store.StartExecution(ctx, userID, string(t), platform, input)
	if err != nil {
		return nil, fmt.Errorf("start execution: %w", err)
	}

	records, remote, err := p.fetch(ctx, userID, t, platform, limit)
	if err != nil {
		p.finish(ctx, execID, store.ExecutionStatusFailed, map[string]any{"error": err.Error()}, 0, start)
		p.Telemetry.ObserveRun(string(t), "failed", time.Since(start))
		return nil, err
	}

	res := &Result{
		Success:   true,
		Status:    StatusOK,
		AgentType: t,
		Platform:  platform,
		Actions:   []string{},
		Analyses:  []RecordAnalysis{},
	}

	// No records is a normal, cheap outcome: no LLM call, confidence 0.
	if len(records) == 0 {
		res.Message = "No records to analyze"
		p.finish(ctx, execID, store.ExecutionStatusCompleted, res, 0, start)
		p.Telemetry.ObserveRun(string(t), "empty", time.Since(start))
		return res, nil
	}

	res.Analyses = p.analyze(ctx, t, records)
	res.RecordsAnalyzed = len(res.Analyses)

	for i := range res.Analyses {
		ra := &res.Analyses[i]
		if ra.Degraded || ra.Error != "" {
			res.Status = StatusDegraded
			continue
		}
		if req.EnableActions {
			acts := p.Executor.Execute(ctx, userID, t, platform, records[i], ra.Analysis, remote)
			res.Actions = append(res.Actions, acts...)
		}
	}
	res.ActionsExecuted = len(res.Actions)
	res.Confidence = aggregateConfidence(res.Analyses)
	if res.Status == StatusDegraded {
		res.Message = "Some records fell back to default analysis"
	}

	p.finish(ctx, execID, store.ExecutionStatusCompleted, res, res.Confidence, start)
	p.Telemetry.ObserveRun(string(t), res.Status, time.Since(start))
	return res, nil
}

// analyze fans records out over the worker pool. Each record gets one
// chat-completion attempt; a transport error yields a zero-confidence
// entry, an unparseable reply yields the degraded fallback.
func (p *Pipeline) analyze(ctx context.Context, t Type, records []PipelineRecord) []RecordAnalysis {
	out := make([]RecordAnalysis, len(records))
	var wg sync.WaitGroup

	for i, rec := range records {
		wg.Add(1)
		go func(i int, rec PipelineRecord) {
			defer wg.Done()
			p.semaphore <- struct{}{}
			defer func() { <-p.semaphore }()

			ra := RecordAnalysis{RecordID: recordID(rec), RecordName: rec.Name}
			reply, err := p.Provider.Generate(ctx, SystemPrompt(), BuildPrompt(t, rec.Fields))
			if err != nil {
				p.Logger.Printf("llm call failed for record %s: %v", ra.RecordID, err)
				ra.Error = err.Error()
				out[i] = ra
				return
			}

			analysis, degraded := ParseAnalysis(t, reply)
			ra.Analysis = analysis
			ra.Degraded = degraded
			if degraded {
				p.Telemetry.ObserveFallback(string(t))
				ra.Confidence = 0.3
			} else {
				ra.Confidence = 0.9
			}
			out[i] = ra
		}(i, rec)
	}

	wg.Wait()
	return out
}

// fetch resolves the record batch for the platform. External platforms
// require a usable OAuth token up front.
func (p *Pipeline) fetch(ctx context.Context, userID string, t Type, platform string, limit int) ([]PipelineRecord, crm.Source, error) {
	switch platform {
	case crm.PlatformNative:
		recs, err := p.fetchNative(ctx, userID, t, limit)
		return recs, nil, err
	case crm.PlatformSalesforce:
		tok, err := p.Tokens.Ensure(ctx, userID, platform)
		if err != nil {
			return nil, nil, err
		}
		client, err := crm.NewSalesforceClient(p.Providers.Salesforce, tok)
		if err != nil {
			return nil, nil, err
		}
		raw, err := client.FetchRecords(ctx, salesforceObject(t), limit)
		if err != nil {
			return nil, nil, err
		}
		return remoteRecords(raw), client, nil
	default:
		tok, err := p.Tokens.Ensure(ctx, userID, platform)
		if err != nil {
			return nil, nil, err
		}
		client := crm.NewHubSpotClient(p.Providers.HubSpot, tok)
		raw, err := client.FetchRecords(ctx, hubspotObject(t), limit)
		if err != nil {
			return nil, nil, err
		}
		return remoteRecords(raw), client, nil
	}
}

func (p *Pipeline) fetchNative(ctx context.Context, userID string, t Type, limit int) ([]PipelineRecord, error) {
	if t.Object() == ObjectContacts {
		contacts, err := p.Store.ListContacts(ctx, userID, limit)
		if err != nil {
			return nil, err
		}
		recs := make([]PipelineRecord, len(contacts))
		for i, c := range contacts {
			recs[i] = contactRecord(c)
		}
		return recs, nil
	}

	opps, err := p.Store.ListOpportunities(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	recs := make([]PipelineRecord, len(opps))
	for i, o := range opps {
		recs[i] = opportunityRecord(o)
	}
	return recs, nil
}

func (p *Pipeline) finish(ctx context.Context, execID, status string, output any, confidence float64, start time.Time) {
	raw, err := json.Marshal(output)
	if err != nil {
		raw = []byte(`{}`)
	}
	if err := p.Store.FinishExecution(ctx, execID, status, raw, confidence, time.Since(start)); err != nil {
		p.Logger.Printf("finish execution %s: %v", execID, err)
	}
}

// aggregateConfidence is the mean of the per-record confidences.
// Errored records count as zero, dragging the aggregate down.
func aggregateConfidence(analyses []RecordAnalysis) float64 {
	if len(analyses) == 0 {
		return 0
	}
	var sum float64
	for _, ra := range analyses {
		sum += ra.Confidence
	}
	return sum / float64(len(analyses))
}

func recordID(rec PipelineRecord) string {
	if rec.LocalID != "" {
		return rec.LocalID
	}
	return rec.RemoteID
}

func contactRecord(c store.Contact) PipelineRecord {
	name := strings.TrimSpace(c.FirstName + " " + c.LastName)
	return PipelineRecord{
		LocalID: c.ID,
		Name:    name,
		Fields: crm.Record{
			"name":       name,
			"email":      c.Email,
			"phone":      c.Phone,
			"title":      c.Title,
			"department": c.Department,
			"lead_score": c.LeadScore,
			"status":     c.Status,
			"tags":       strings.Join(c.Tags, ", "),
		},
	}
}

func opportunityRecord(o store.Opportunity) PipelineRecord {
	fields := crm.Record{
		"name":        o.Name,
		"amount":      o.Amount,
		"stage":       o.Stage,
		"probability": o.Probability,
		"priority":    o.Priority,
	}
	if o.ExpectedCloseDate != nil {
		fields["expected_close_date"] = o.ExpectedCloseDate.Format("2006-01-02")
	}
	return PipelineRecord{LocalID: o.ID, Name: o.Name, Fields: fields}
}

func remoteRecords(raw []crm.Record) []PipelineRecord {
	recs := make([]PipelineRecord, len(raw))
	for i, r := range raw {
		recs[i] = PipelineRecord{
			RemoteID: r.ID(),
			Name:     remoteName(r),
			Fields:   r,
		}
	}
	return recs
}

func remoteName(r crm.Record) string {
	if n := r.String("Name"); n != "" {
		return n
	}
	if n := r.String("dealname"); n != "" {
		return n
	}
	first := r.String("FirstName")
	if first == "" {
		first = r.String("firstname")
	}
	last := r.String("LastName")
	if last == "" {
		last = r.String("lastname")
	}
	return strings.TrimSpace(first + " " + last)
}

func salesforceObject(t Type) string {
	switch t {
	case TypeLeadIntelligence:
		return "Lead"
	case TypeSentimentAnalysis, TypeCustomerSegmentation, TypeCommunicationTiming:
		return "Contact"
	default:
		return "Opportunity"
	}
}

func hubspotObject(t Type) string {
	if t.Object() == ObjectContacts {
		return "contacts"
	}
	return "deals"
}
