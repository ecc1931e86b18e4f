package agent

import (
	"encoding/json"
	"errors"
	"strings"
)

// ParseAnalysis decodes the model's reply into the tagged variant for
// the agent type. Policy, in order: unwrap a fenced code block and
// parse it; parse the raw text; otherwise substitute the hard-coded
// fallback for the agent type and report degraded=true. No error ever
// escapes: the caller always gets a well-formed analysis.
func ParseAnalysis(t Type, text string) (Analysis, bool) {
	payload, err := ExtractJSON(text)
	if err != nil {
		payload = strings.TrimSpace(text)
	}

	out := newAnalysis(t)
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		fb := Fallback(t)
		fb.normalize()
		return fb, true
	}
	out.normalize()
	return out, false
}

func newAnalysis(t Type) Analysis {
	switch t {
	case TypeLeadIntelligence:
		return &LeadAnalysis{}
	case TypeSentimentAnalysis:
		return &SentimentAnalysis{}
	case TypeCustomerSegmentation:
		return &SegmentationAnalysis{}
	case TypePipelineRisk:
		return &RiskAnalysis{}
	case TypeOpportunityScoring:
		return &OpportunityAnalysis{}
	case TypeSalesCoaching:
		return &CoachingAnalysis{}
	default:
		return &TimingAnalysis{}
	}
}

// ExtractJSON finds the first JSON object or array in s. It unwraps a
// leading Markdown code fence (with optional language tag) first, then
// scans for a balanced {...} or [...] ignoring braces inside strings.
func ExtractJSON(s string) (string, error) {
	s = strings.TrimSpace(s)
	if inner, ok := stripCodeFence(s); ok {
		s = strings.TrimSpace(inner)
	}

	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			if out, ok := balancedFrom(s, i); ok {
				return out, nil
			}
		}
	}
	return "", errors.New("no balanced JSON object/array found")
}

// stripCodeFence removes the first ``` or ~~~ fenced block when s
// starts with one.
func stripCodeFence(s string) (string, bool) {
	trim := strings.TrimLeft(s, "\n\r\t ")
	fence := ""
	switch {
	case strings.HasPrefix(trim, "```"):
		fence = "```"
	case strings.HasPrefix(trim, "~~~"):
		fence = "~~~"
	default:
		return "", false
	}
	rest := trim[len(fence):]
	nl := strings.IndexByte(rest, '\n')
	if nl == -1 {
		return "", false
	}
	rest = rest[nl+1:]
	if end := strings.Index(rest, fence); end != -1 {
		return rest[:end], true
	}
	return "", false
}

// balancedFrom extracts a balanced JSON value starting at start,
// handling strings and escape sequences.
func balancedFrom(s string, start int) (string, bool) {
	if s[start] != '{' && s[start] != '[' {
		return "", false
	}
	var stack []byte
	stack = append(stack, s[start])
	inString, escape := false, false

	for i := start + 1; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escape:
				escape = false
			case c == '\\':
				escape = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			top := stack[len(stack)-1]
			if (top == '{' && c != '}') || (top == '[' && c != ']') {
				return "", false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
