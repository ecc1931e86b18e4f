package agent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pipewise/pipewise/internal/crm"
)

const systemPrompt = `You are a CRM analysis assistant. You receive one CRM record and respond ONLY with valid JSON matching the requested shape. Do not include any other text or explanation.`

// responseShapes spell out the JSON the model must return per agent
// type. The parser decodes into the matching variant.
var responseShapes = map[Type]string{
	TypeLeadIntelligence: `{
  "newScore": <integer 0-100>,
  "priority": "Low" | "Medium" | "High",
  "status": "new" | "working" | "qualified",
  "tags": ["array", "of", "strings"],
  "reasoning": "one sentence"
}`,
	TypeSentimentAnalysis: `{
  "sentiment": "positive" | "neutral" | "negative",
  "score": <number 0.0-1.0>,
  "keyPhrases": ["array", "of", "strings"],
  "reasoning": "one sentence"
}`,
	TypeCustomerSegmentation: `{
  "segment": "enterprise" | "mid-market" | "smb" | "general",
  "tags": ["array", "of", "strings"],
  "reasoning": "one sentence"
}`,
	TypePipelineRisk: `{
  "riskLevel": "Low" | "Medium" | "High" | "Critical",
  "probability": <integer 0-100>,
  "recommendedAction": "one sentence",
  "reasoning": "one sentence"
}`,
	TypeOpportunityScoring: `{
  "score": <integer 0-100>,
  "priority": "Low" | "Medium" | "High",
  "probability": <integer 0-100>,
  "reasoning": "one sentence"
}`,
	TypeSalesCoaching: `{
  "strengths": ["array", "of", "strings"],
  "improvements": ["array", "of", "strings"],
  "nextSteps": ["array", "of", "strings"],
  "priority": "Low" | "Medium" | "High"
}`,
	TypeCommunicationTiming: `{
  "bestDay": "Monday".."Friday",
  "bestTime": "HH:MM",
  "channel": "email" | "phone" | "linkedin",
  "reasoning": "one sentence"
}`,
}

var promptInstructions = map[Type]string{
	TypeLeadIntelligence:     "Score this lead's conversion potential from its title, company, engagement and current score.",
	TypeSentimentAnalysis:    "Assess the communication tone and engagement signals for this contact.",
	TypeCustomerSegmentation: "Assign this contact to a market segment based on company and role.",
	TypePipelineRisk:         "Assess the slippage risk for this deal from its stage, amount and close date.",
	TypeOpportunityScoring:   "Score this deal's win likelihood from its stage, amount and momentum.",
	TypeSalesCoaching:        "Coach the account owner on this deal: what is working, what is not, and what to do next.",
	TypeCommunicationTiming:  "Recommend the best day, time and channel to reach this contact.",
}

// BuildPrompt renders the user prompt for one record. Pure function:
// record fields are embedded as formatted key/value text with no
// sanitization beyond stringification.
func BuildPrompt(t Type, record crm.Record) string {
	keys := make([]string, 0, len(record))
	for k := range record {
		if strings.HasPrefix(k, "attributes") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\nRECORD:\n", promptInstructions[t])
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, record[k])
	}
	fmt.Fprintf(&b, "\nRespond ONLY with valid JSON in the following format:\n%s\n", responseShapes[t])
	return b.String()
}

// SystemPrompt returns the shared system message for analysis calls.
func SystemPrompt() string { return systemPrompt }
