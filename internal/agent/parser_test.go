package agent

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestExtractJSONFenced(t *testing.T) {
	in := "Here you go:\n```json\n{\"newScore\": 82, \"priority\": \"High\"}\n```\nHope that helps."
	out, err := ExtractJSON(in)
	if err != nil {
		t.Fatalf("ExtractJSON returned error: %v", err)
	}
	if out != `{"newScore": 82, "priority": "High"}` {
		t.Fatalf("unexpected extraction: %q", out)
	}
}

func TestExtractJSONBare(t *testing.T) {
	in := `The analysis is {"score": 70, "nested": {"a": "b}"}} done`
	out, err := ExtractJSON(in)
	if err != nil {
		t.Fatalf("ExtractJSON returned error: %v", err)
	}
	if out != `{"score": 70, "nested": {"a": "b}"}}` {
		t.Fatalf("unexpected extraction: %q", out)
	}
}

func TestExtractJSONNoObject(t *testing.T) {
	if _, err := ExtractJSON("no json here at all"); err == nil {
		t.Fatalf("expected error for text without JSON")
	}
}

func TestParseAnalysisLead(t *testing.T) {
	a, degraded := ParseAnalysis(TypeLeadIntelligence, "```json\n{\"newScore\": 88, \"priority\": \"High\", \"status\": \"qualified\", \"tags\": [\"enterprise\"]}\n```")
	if degraded {
		t.Fatalf("expected clean parse")
	}
	lead, ok := a.(*LeadAnalysis)
	if !ok {
		t.Fatalf("expected LeadAnalysis, got %T", a)
	}
	if lead.NewScore != 88 || lead.Priority != PriorityHigh || lead.Status != "qualified" {
		t.Fatalf("unexpected analysis: %+v", lead)
	}
}

func TestParseAnalysisClampsScore(t *testing.T) {
	a, degraded := ParseAnalysis(TypeLeadIntelligence, `{"newScore": 250, "priority": "urgent"}`)
	if degraded {
		t.Fatalf("expected clean parse")
	}
	lead := a.(*LeadAnalysis)
	if lead.NewScore != 100 {
		t.Fatalf("expected score clamped to 100, got %d", lead.NewScore)
	}
	if lead.Priority != PriorityMedium {
		t.Fatalf("expected unknown priority normalized to Medium, got %q", lead.Priority)
	}
}

// Parsing the serialized form of a parsed analysis must yield the same
// analysis again.
func TestParseAnalysisIdempotent(t *testing.T) {
	first, degraded := ParseAnalysis(TypePipelineRisk, "```\n{\"riskLevel\": \"High\", \"probability\": 72, \"recommendedAction\": \"call the champion\"}\n```")
	if degraded {
		t.Fatalf("expected clean parse")
	}
	raw, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, degraded := ParseAnalysis(TypePipelineRisk, string(raw))
	if degraded {
		t.Fatalf("re-parse should not degrade")
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("re-parse changed the analysis: %+v vs %+v", first, second)
	}
}

func TestParseAnalysisFallsBack(t *testing.T) {
	a, degraded := ParseAnalysis(TypeLeadIntelligence, "I am sorry, I cannot help with that.")
	if !degraded {
		t.Fatalf("expected degraded result for unparseable text")
	}
	lead, ok := a.(*LeadAnalysis)
	if !ok {
		t.Fatalf("expected LeadAnalysis fallback, got %T", a)
	}
	if lead.NewScore != 65 || lead.Priority != PriorityMedium {
		t.Fatalf("unexpected fallback values: %+v", lead)
	}
}

// The fallback for a given agent type never changes between calls.
func TestFallbackDeterministic(t *testing.T) {
	for _, typ := range []Type{
		TypeLeadIntelligence, TypeSentimentAnalysis, TypeCustomerSegmentation,
		TypePipelineRisk, TypeOpportunityScoring, TypeSalesCoaching, TypeCommunicationTiming,
	} {
		a := Fallback(typ)
		b := Fallback(typ)
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("fallback for %s not deterministic", typ)
		}
		if a.AgentType() != typ {
			t.Fatalf("fallback for %s reports type %s", typ, a.AgentType())
		}
	}
}

func TestParseAnalysisAllShapes(t *testing.T) {
	cases := map[Type]string{
		TypeSentimentAnalysis:    `{"sentiment": "positive", "score": 0.8}`,
		TypeCustomerSegmentation: `{"segment": "enterprise", "tags": ["vip"]}`,
		TypeOpportunityScoring:   `{"score": 77, "priority": "High", "probability": 60}`,
		TypeSalesCoaching:        `{"nextSteps": ["send proposal"], "priority": "Low"}`,
		TypeCommunicationTiming:  `{"bestDay": "Thursday", "bestTime": "14:00", "channel": "phone"}`,
	}
	for typ, payload := range cases {
		a, degraded := ParseAnalysis(typ, payload)
		if degraded {
			t.Fatalf("%s: unexpected fallback", typ)
		}
		if a.AgentType() != typ {
			t.Fatalf("%s: wrong variant %T", typ, a)
		}
	}
}
