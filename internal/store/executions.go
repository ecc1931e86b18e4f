package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Execution is the append-only audit row for one agent run. A row is
// created in status running and receives exactly one terminal
// transition (completed or failed); nothing mutates it afterwards.
type Execution struct {
	ID              string
	UserID          string
	AgentType       string
	Platform        string
	Input           json.RawMessage
	Output          json.RawMessage
	Confidence      float64
	ExecutionTimeMS int64
	Status          string
	StartedAt       time.Time
	CompletedAt     *time.Time
}

// StartExecution creates the audit row for a new run.
func (s *Store) StartExecution(ctx context.Context, userID, agentType, platform string, input json.RawMessage) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO ai_agent_executions (user_id, agent_type, platform, input, status)
VALUES ($1,$2,$3,$4,$5)
RETURNING id
`, userID, agentType, platform, defaultJSON(input), ExecutionStatusRunning).Scan(&id)
	return id, err
}

// FinishExecution records the single terminal transition for a run.
// Rows already completed are left untouched.
func (s *Store) FinishExecution(ctx context.Context, id, status string, output json.RawMessage, confidence float64, elapsed time.Duration) error {
	if status != ExecutionStatusCompleted && status != ExecutionStatusFailed {
		return fmt.Errorf("invalid terminal status: %s", status)
	}
	res, err := s.DB.ExecContext(ctx, `
UPDATE ai_agent_executions
SET status=$2, output=$3, confidence=$4, execution_time_ms=$5, completed_at=NOW()
WHERE id=$1 AND completed_at IS NULL
`, id, status, defaultJSON(output), confidence, elapsed.Milliseconds())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("execution %s already finished", id)
	}
	return nil
}

// ListExecutions returns recent audit rows for the user, newest first.
func (s *Store) ListExecutions(ctx context.Context, userID string, limit int) ([]Execution, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, user_id, agent_type, platform, input, output, confidence, execution_time_ms, status, started_at, completed_at
FROM ai_agent_executions
WHERE user_id=$1
ORDER BY started_at DESC
LIMIT $2
`, userID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Execution
	for rows.Next() {
		var e Execution
		var uid sql.NullString
		var output []byte
		var confidence sql.NullFloat64
		var elapsed sql.NullInt64
		var completed sql.NullTime
		if err := rows.Scan(&e.ID, &uid, &e.AgentType, &e.Platform, &e.Input, &output, &confidence, &elapsed, &e.Status, &e.StartedAt, &completed); err != nil {
			return nil, err
		}
		e.UserID = uid.String
		e.Output = output
		e.Confidence = confidence.Float64
		e.ExecutionTimeMS = elapsed.Int64
		if completed.Valid {
			t := completed.Time
			e.CompletedAt = &t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
