package agent

// Fallback returns the hard-coded default analysis for the agent type.
// The values are deliberately middle-of-the-road; callers mark the
// result degraded so the substitution is visible to operators.
func Fallback(t Type) Analysis {
	switch t {
	case TypeLeadIntelligence:
		return &LeadAnalysis{
			NewScore:  65,
			Priority:  PriorityMedium,
			Status:    "working",
			Reasoning: "Default assessment; model response could not be parsed.",
		}
	case TypeSentimentAnalysis:
		return &SentimentAnalysis{
			Sentiment: "neutral",
			Score:     0.5,
			Reasoning: "Default assessment; model response could not be parsed.",
		}
	case TypeCustomerSegmentation:
		return &SegmentationAnalysis{
			Segment:   "general",
			Reasoning: "Default assessment; model response could not be parsed.",
		}
	case TypePipelineRisk:
		return &RiskAnalysis{
			RiskLevel:         RiskMedium,
			Probability:       50,
			RecommendedAction: "Review the deal manually.",
			Reasoning:         "Default assessment; model response could not be parsed.",
		}
	case TypeOpportunityScoring:
		return &OpportunityAnalysis{
			Score:       65,
			Priority:    PriorityMedium,
			Probability: 50,
			Reasoning:   "Default assessment; model response could not be parsed.",
		}
	case TypeSalesCoaching:
		return &CoachingAnalysis{
			NextSteps: []string{"Review the deal with the account owner"},
			Priority:  PriorityMedium,
		}
	default:
		return &TimingAnalysis{
			BestDay:   "Tuesday",
			BestTime:  "10:00",
			Channel:   "email",
			Reasoning: "Default assessment; model response could not be parsed.",
		}
	}
}
