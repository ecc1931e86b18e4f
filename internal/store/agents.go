package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// AgentRecord is a configured agent row; the scheduler fires enabled
// agents on their cron spec.
type AgentRecord struct {
	ID            string
	UserID        string
	AgentType     string
	Platform      string
	Enabled       bool
	EnableActions bool
	ScheduleCron  string
	CreatedAt     time.Time
}

// UpsertAgent creates or updates the configuration row for one
// (user, agent_type, platform) combination.
func (s *Store) UpsertAgent(ctx context.Context, a AgentRecord) (string, error) {
	if strings.TrimSpace(a.AgentType) == "" {
		return "", fmt.Errorf("agent_type required")
	}
	if a.Platform == "" {
		a.Platform = "native"
	}
	var id string
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO ai_agents (user_id, agent_type, platform, enabled, enable_actions, schedule_cron)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (user_id, agent_type, platform) DO UPDATE SET
    enabled = EXCLUDED.enabled,
    enable_actions = EXCLUDED.enable_actions,
    schedule_cron = EXCLUDED.schedule_cron
RETURNING id
`, a.UserID, a.AgentType, a.Platform, a.Enabled, a.EnableActions, nullableString(a.ScheduleCron)).Scan(&id)
	return id, err
}

// ListEnabledAgents returns every enabled agent with a schedule, across
// all users, for the scheduler tick.
func (s *Store) ListEnabledAgents(ctx context.Context) ([]AgentRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, user_id, agent_type, platform, enabled, enable_actions, schedule_cron, created_at
FROM ai_agents
WHERE enabled AND schedule_cron IS NOT NULL
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AgentRecord
	for rows.Next() {
		var a AgentRecord
		var uid, cron sql.NullString
		if err := rows.Scan(&a.ID, &uid, &a.AgentType, &a.Platform, &a.Enabled, &a.EnableActions, &cron, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.UserID = uid.String
		a.ScheduleCron = cron.String
		out = append(out, a)
	}
	return out, rows.Err()
}

// LatestExecutionTime returns when the agent last started a run, if ever.
func (s *Store) LatestExecutionTime(ctx context.Context, userID, agentType, platform string) (*time.Time, error) {
	var started sql.NullTime
	err := s.DB.QueryRowContext(ctx, `
SELECT MAX(started_at) FROM ai_agent_executions
WHERE user_id=$1 AND agent_type=$2 AND platform=$3
`, userID, agentType, platform).Scan(&started)
	if err != nil {
		return nil, err
	}
	if !started.Valid {
		return nil, nil
	}
	t := started.Time
	return &t, nil
}
