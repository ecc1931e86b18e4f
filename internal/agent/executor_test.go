package agent

import (
	"testing"
)

// Escalating risk must never reduce the number of follow-up writes.
func TestFollowUpRiskMonotonic(t *testing.T) {
	rec := PipelineRecord{LocalID: "o-1", Name: "Big Deal"}
	writes := func(level string) int {
		_, _, ok := followUp(TypePipelineRisk, rec, &RiskAnalysis{RiskLevel: level, Probability: 50})
		if ok {
			return 1
		}
		return 0
	}
	levels := []string{RiskLow, RiskMedium, RiskHigh, RiskCritical}
	prev := 0
	for _, level := range levels {
		n := writes(level)
		if n < prev {
			t.Fatalf("write count decreased at risk level %s", level)
		}
		prev = n
	}
	if writes(RiskLow) != 0 || writes(RiskMedium) != 0 {
		t.Fatalf("low/medium risk should not create follow-ups")
	}
	if writes(RiskHigh) != 1 || writes(RiskCritical) != 1 {
		t.Fatalf("high/critical risk should create a follow-up")
	}
}

func TestFollowUpPriorityThreshold(t *testing.T) {
	rec := PipelineRecord{LocalID: "c-1", Name: "Jane Doe"}
	if _, _, ok := followUp(TypeLeadIntelligence, rec, &LeadAnalysis{NewScore: 80, Priority: PriorityMedium}); ok {
		t.Fatalf("medium priority lead should not create a follow-up")
	}
	subject, due, ok := followUp(TypeLeadIntelligence, rec, &LeadAnalysis{NewScore: 90, Priority: PriorityHigh})
	if !ok {
		t.Fatalf("high priority lead should create a follow-up")
	}
	if subject == "" || due.IsZero() {
		t.Fatalf("follow-up missing subject or due date")
	}
}

func TestFollowUpSentimentNever(t *testing.T) {
	rec := PipelineRecord{LocalID: "c-1", Name: "Jane Doe"}
	if _, _, ok := followUp(TypeSentimentAnalysis, rec, &SentimentAnalysis{Sentiment: "negative", Score: 0.1}); ok {
		t.Fatalf("sentiment verdicts should never create follow-ups")
	}
}

func TestRiskToPriority(t *testing.T) {
	cases := map[string]string{
		RiskCritical: PriorityHigh,
		RiskHigh:     PriorityHigh,
		RiskMedium:   PriorityMedium,
		RiskLow:      PriorityLow,
	}
	for risk, want := range cases {
		if got := riskToPriority(risk); got != want {
			t.Fatalf("riskToPriority(%s) = %s, want %s", risk, got, want)
		}
	}
}

func TestRemoteFieldsPerPlatform(t *testing.T) {
	object, fields := remoteFields(TypeLeadIntelligence, "salesforce", &LeadAnalysis{Priority: PriorityHigh})
	if object != "Lead" || fields["Rating"] != PriorityHigh {
		t.Fatalf("unexpected salesforce lead mapping: %s %v", object, fields)
	}
	object, fields = remoteFields(TypePipelineRisk, "hubspot", &RiskAnalysis{RiskLevel: RiskHigh, Probability: 30})
	if object != "deals" || fields["hs_priority"] != PriorityHigh {
		t.Fatalf("unexpected hubspot risk mapping: %s %v", object, fields)
	}
	if object, fields = remoteFields(TypeSentimentAnalysis, "salesforce", &SentimentAnalysis{}); object != "" || fields != nil {
		t.Fatalf("sentiment should not map to remote fields")
	}
}
