package agent

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/pipewise/pipewise/internal/crm"
	"github.com/pipewise/pipewise/internal/store"
	"github.com/pipewise/pipewise/internal/telemetry"
)

// PipelineRecord is one fetched record flowing through a run. LocalID
// is the Postgres row id when the record lives natively; RemoteID is
// the external CRM object id when one exists.
type PipelineRecord struct {
	LocalID  string
	RemoteID string
	Name     string
	Fields   crm.Record
}

// Executor performs the optional write-back for one analyzed record.
// Every write is independent and best-effort: a failed remote call
// never rolls back a local write and vice versa. Executed actions are
// returned as human-readable strings; callers derive the count from
// that list.
type Executor struct {
	Store     *store.Store
	Telemetry *telemetry.Telemetry
	Logger    *log.Logger
}

// NewExecutor wires an executor with a prefixed logger.
func NewExecutor(st *store.Store, tele *telemetry.Telemetry) *Executor {
	return &Executor{Store: st, Telemetry: tele, Logger: log.New(log.Writer(), "[EXEC] ", log.LstdFlags)}
}

// Execute applies the analysis to the source systems. remote is nil
// when no usable CRM client exists for the record's platform.
func (e *Executor) Execute(ctx context.Context, userID string, t Type, platform string, rec PipelineRecord, a Analysis, remote crm.Source) []string {
	var actions []string

	// Local write-back is always attempted when a local row exists.
	if rec.LocalID != "" {
		if act, err := e.writeLocal(ctx, userID, t, rec, a); err != nil {
			e.Logger.Printf("local write-back failed for %s: %v", rec.LocalID, err)
		} else if act != "" {
			actions = append(actions, act)
			e.Telemetry.ObserveWriteback(string(t), "local")
		}
	}

	// Remote write-back needs a client and the external object id.
	if remote != nil && rec.RemoteID != "" {
		object, fields := remoteFields(t, platform, a)
		if len(fields) > 0 {
			if err := remote.UpdateRecord(ctx, object, rec.RemoteID, fields); err != nil {
				e.Logger.Printf("remote update failed for %s %s: %v", object, rec.RemoteID, err)
			} else {
				actions = append(actions, fmt.Sprintf("Updated %s %s on %s", object, rec.RemoteID, platform))
				e.Telemetry.ObserveWriteback(string(t), platform)
			}
		}
	}

	// Follow-up task when the verdict crosses the risk/priority
	// threshold, both locally and on the remote CRM.
	if subject, due, ok := followUp(t, rec, a); ok {
		act := store.Activity{
			UserID:      userID,
			Type:        "task",
			Subject:     subject,
			ScheduledAt: &due,
		}
		if t.Object() == ObjectContacts {
			act.ContactID = rec.LocalID
		} else {
			act.OpportunityID = rec.LocalID
		}
		if _, err := e.Store.CreateActivity(ctx, act); err != nil {
			e.Logger.Printf("follow-up insert failed: %v", err)
		} else {
			actions = append(actions, "Created follow-up task: "+subject)
			e.Telemetry.ObserveWriteback(string(t), "local")
		}

		if remote != nil && rec.RemoteID != "" {
			if err := remote.CreateTask(ctx, remoteTaskFields(platform, subject, due, rec.RemoteID)); err != nil {
				e.Logger.Printf("remote task creation failed: %v", err)
			} else {
				actions = append(actions, fmt.Sprintf("Created follow-up task on %s", platform))
				e.Telemetry.ObserveWriteback(string(t), platform)
			}
		}
	}

	return actions
}

func (e *Executor) writeLocal(ctx context.Context, userID string, t Type, rec PipelineRecord, a Analysis) (string, error) {
	switch v := a.(type) {
	case *LeadAnalysis:
		if err := e.Store.UpdateContactAnalysis(ctx, userID, rec.LocalID, v.NewScore, v.Status, v.Tags); err != nil {
			return "", err
		}
		return fmt.Sprintf("Updated lead score to %d for %s", v.NewScore, rec.Name), nil
	case *SegmentationAnalysis:
		if err := e.Store.UpdateContactAnalysis(ctx, userID, rec.LocalID, recordScore(rec), "", append([]string{v.Segment}, v.Tags...)); err != nil {
			return "", err
		}
		return fmt.Sprintf("Tagged %s as %s", rec.Name, v.Segment), nil
	case *RiskAnalysis:
		if err := e.Store.UpdateOpportunityAnalysis(ctx, userID, rec.LocalID, v.Probability, riskToPriority(v.RiskLevel)); err != nil {
			return "", err
		}
		return fmt.Sprintf("Updated risk probability to %d%% for %s", v.Probability, rec.Name), nil
	case *OpportunityAnalysis:
		if err := e.Store.UpdateOpportunityAnalysis(ctx, userID, rec.LocalID, v.Probability, v.Priority); err != nil {
			return "", err
		}
		return fmt.Sprintf("Updated probability to %d%% for %s", v.Probability, rec.Name), nil
	default:
		// Sentiment, coaching and timing verdicts do not mutate the
		// source record.
		return "", nil
	}
}

// recordScore preserves the record's existing lead score on updates
// that only change tags.
func recordScore(rec PipelineRecord) int {
	switch v := rec.Fields["lead_score"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func riskToPriority(risk string) string {
	switch risk {
	case RiskCritical, RiskHigh:
		return PriorityHigh
	case RiskMedium:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// followUp decides whether the verdict crosses the side-effect
// threshold. Escalating risk never reduces the number of writes.
func followUp(t Type, rec PipelineRecord, a Analysis) (subject string, due time.Time, ok bool) {
	now := time.Now()
	switch v := a.(type) {
	case *RiskAnalysis:
		switch v.RiskLevel {
		case RiskCritical:
			return fmt.Sprintf("URGENT: review at-risk deal %s", rec.Name), now.Add(24 * time.Hour), true
		case RiskHigh:
			return fmt.Sprintf("Review at-risk deal %s", rec.Name), now.Add(72 * time.Hour), true
		}
	case *LeadAnalysis:
		if v.Priority == PriorityHigh {
			return fmt.Sprintf("Follow up with high-priority lead %s", rec.Name), now.Add(48 * time.Hour), true
		}
	case *OpportunityAnalysis:
		if v.Priority == PriorityHigh {
			return fmt.Sprintf("Advance high-priority deal %s", rec.Name), now.Add(48 * time.Hour), true
		}
	case *CoachingAnalysis:
		if v.Priority == PriorityHigh {
			return fmt.Sprintf("Coaching action needed on %s", rec.Name), now.Add(48 * time.Hour), true
		}
	}
	return "", time.Time{}, false
}

// remoteFields maps a verdict to the platform's writable fields.
func remoteFields(t Type, platform string, a Analysis) (object string, fields map[string]any) {
	salesforce := platform == crm.PlatformSalesforce
	switch v := a.(type) {
	case *LeadAnalysis:
		if salesforce {
			return "Lead", map[string]any{"Rating": v.Priority}
		}
		return "contacts", map[string]any{"hs_lead_status": v.Status}
	case *RiskAnalysis:
		if salesforce {
			return "Opportunity", map[string]any{"Probability": v.Probability}
		}
		return "deals", map[string]any{"hs_priority": riskToPriority(v.RiskLevel)}
	case *OpportunityAnalysis:
		if salesforce {
			return "Opportunity", map[string]any{"Probability": v.Probability}
		}
		return "deals", map[string]any{"hs_priority": v.Priority}
	default:
		return "", nil
	}
}

func remoteTaskFields(platform, subject string, due time.Time, remoteID string) map[string]any {
	if platform == crm.PlatformSalesforce {
		return map[string]any{
			"Subject":      subject,
			"ActivityDate": due.Format("2006-01-02"),
			"WhoId":        remoteID,
		}
	}
	return map[string]any{
		"hs_task_subject":  subject,
		"hs_task_status":   "NOT_STARTED",
		"hs_timestamp":     due.UnixMilli(),
		"hs_task_body":     subject,
		"hs_task_priority": "HIGH",
		"hs_task_type":     "TODO",
	}
}
