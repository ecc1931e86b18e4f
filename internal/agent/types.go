package agent

import (
	"fmt"
)

// Type names one analysis routine. Each type maps records of one object
// kind to a structured JSON verdict with its own schema.
type Type string

const (
	TypeLeadIntelligence     Type = "lead-intelligence"
	TypeSentimentAnalysis    Type = "sentiment-analysis"
	TypeCustomerSegmentation Type = "customer-segmentation"
	TypePipelineRisk         Type = "pipeline-risk"
	TypeOpportunityScoring   Type = "opportunity-scoring"
	TypeSalesCoaching        Type = "sales-coaching"
	TypeCommunicationTiming  Type = "communication-timing"
)

// ObjectKind says which record family an agent analyzes.
type ObjectKind int

const (
	ObjectContacts ObjectKind = iota
	ObjectOpportunities
)

var agentObjects = map[Type]ObjectKind{
	TypeLeadIntelligence:     ObjectContacts,
	TypeSentimentAnalysis:    ObjectContacts,
	TypeCustomerSegmentation: ObjectContacts,
	TypeCommunicationTiming:  ObjectContacts,
	TypePipelineRisk:         ObjectOpportunities,
	TypeOpportunityScoring:   ObjectOpportunities,
	TypeSalesCoaching:        ObjectOpportunities,
}

// ParseType validates an agent type string from the API.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if _, ok := agentObjects[t]; !ok {
		return "", fmt.Errorf("unknown agent type: %s", s)
	}
	return t, nil
}

// Object returns the record family the agent type operates on.
func (t Type) Object() ObjectKind { return agentObjects[t] }

// Risk levels and priorities used by the write-back thresholds.
const (
	RiskLow      = "Low"
	RiskMedium   = "Medium"
	RiskHigh     = "High"
	RiskCritical = "Critical"

	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"
)

// Analysis is the tagged verdict variant for one agent type.
type Analysis interface {
	AgentType() Type
	// normalize clamps out-of-range values after a JSON decode.
	normalize()
}

// LeadAnalysis scores a contact/lead 0-100 and suggests a status.
type LeadAnalysis struct {
	NewScore  int      `json:"newScore"`
	Priority  string   `json:"priority"`
	Status    string   `json:"status,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Reasoning string   `json:"reasoning,omitempty"`
}

func (a *LeadAnalysis) AgentType() Type { return TypeLeadIntelligence }
func (a *LeadAnalysis) normalize() {
	a.NewScore = clampScore(a.NewScore)
	a.Priority = normalizePriority(a.Priority)
}

// SentimentAnalysis classifies recent communication tone.
type SentimentAnalysis struct {
	Sentiment  string   `json:"sentiment"`
	Score      float64  `json:"score"`
	KeyPhrases []string `json:"keyPhrases,omitempty"`
	Reasoning  string   `json:"reasoning,omitempty"`
}

func (a *SentimentAnalysis) AgentType() Type { return TypeSentimentAnalysis }
func (a *SentimentAnalysis) normalize() {
	switch a.Sentiment {
	case "positive", "neutral", "negative":
	default:
		a.Sentiment = "neutral"
	}
	if a.Score < 0 {
		a.Score = 0
	}
	if a.Score > 1 {
		a.Score = 1
	}
}

// SegmentationAnalysis assigns a contact to a marketing segment.
type SegmentationAnalysis struct {
	Segment   string   `json:"segment"`
	Tags      []string `json:"tags,omitempty"`
	Reasoning string   `json:"reasoning,omitempty"`
}

func (a *SegmentationAnalysis) AgentType() Type { return TypeCustomerSegmentation }
func (a *SegmentationAnalysis) normalize() {
	if a.Segment == "" {
		a.Segment = "general"
	}
}

// RiskAnalysis flags a deal's slippage risk.
type RiskAnalysis struct {
	RiskLevel         string `json:"riskLevel"`
	Probability       int    `json:"probability"`
	RecommendedAction string `json:"recommendedAction,omitempty"`
	Reasoning         string `json:"reasoning,omitempty"`
}

func (a *RiskAnalysis) AgentType() Type { return TypePipelineRisk }
func (a *RiskAnalysis) normalize() {
	switch a.RiskLevel {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
	default:
		a.RiskLevel = RiskMedium
	}
	a.Probability = clampScore(a.Probability)
}

// OpportunityAnalysis scores a deal and adjusts its win probability.
type OpportunityAnalysis struct {
	Score       int    `json:"score"`
	Priority    string `json:"priority"`
	Probability int    `json:"probability"`
	Reasoning   string `json:"reasoning,omitempty"`
}

func (a *OpportunityAnalysis) AgentType() Type { return TypeOpportunityScoring }
func (a *OpportunityAnalysis) normalize() {
	a.Score = clampScore(a.Score)
	a.Probability = clampScore(a.Probability)
	a.Priority = normalizePriority(a.Priority)
}

// CoachingAnalysis suggests next steps for the deal owner.
type CoachingAnalysis struct {
	Strengths    []string `json:"strengths,omitempty"`
	Improvements []string `json:"improvements,omitempty"`
	NextSteps    []string `json:"nextSteps"`
	Priority     string   `json:"priority"`
}

func (a *CoachingAnalysis) AgentType() Type { return TypeSalesCoaching }
func (a *CoachingAnalysis) normalize() {
	a.Priority = normalizePriority(a.Priority)
	if len(a.NextSteps) == 0 {
		a.NextSteps = []string{"Review the deal with the account owner"}
	}
}

// TimingAnalysis recommends when and how to reach a contact.
type TimingAnalysis struct {
	BestDay   string `json:"bestDay"`
	BestTime  string `json:"bestTime"`
	Channel   string `json:"channel"`
	Reasoning string `json:"reasoning,omitempty"`
}

func (a *TimingAnalysis) AgentType() Type { return TypeCommunicationTiming }
func (a *TimingAnalysis) normalize() {
	if a.Channel == "" {
		a.Channel = "email"
	}
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

func normalizePriority(p string) string {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p
	default:
		return PriorityMedium
	}
}

// RecordAnalysis pairs one fetched record with its parsed verdict.
// Degraded marks a fallback substituted for an unparseable LLM reply.
type RecordAnalysis struct {
	RecordID   string   `json:"record_id"`
	RecordName string   `json:"record_name,omitempty"`
	Analysis   Analysis `json:"analysis"`
	Confidence float64  `json:"confidence"`
	Degraded   bool     `json:"degraded,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// Result is the envelope returned to the caller for one pipeline run.
type Result struct {
	Success         bool             `json:"success"`
	Status          string           `json:"status"`
	AgentType       Type             `json:"agent_type"`
	Platform        string           `json:"platform"`
	Analyses        []RecordAnalysis `json:"analysis"`
	Confidence      float64          `json:"confidence"`
	Actions         []string         `json:"actions"`
	ActionsExecuted int              `json:"actions_executed"`
	RecordsAnalyzed int              `json:"records_analyzed"`
	Message         string           `json:"message,omitempty"`
}

// Result statuses. A degraded run completed but substituted at least
// one fallback analysis.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// Request describes one pipeline invocation.
type Request struct {
	Platform      string `json:"platform"`
	EnableActions bool   `json:"enable_actions"`
	Limit         int    `json:"limit"`
}
