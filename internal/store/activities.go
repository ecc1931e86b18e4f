package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Activity is an append-only follow-up task created either manually or
// as a side effect of an agent run crossing a risk/priority threshold.
type Activity struct {
	ID            string
	UserID        string
	ContactID     string
	OpportunityID string
	Type          string
	Subject       string
	Status        string
	ScheduledAt   *time.Time
	CreatedAt     time.Time
}

// CreateActivity inserts a follow-up row. Activities are never updated
// or deleted by the pipeline.
func (s *Store) CreateActivity(ctx context.Context, a Activity) (string, error) {
	if strings.TrimSpace(a.Type) == "" || strings.TrimSpace(a.Subject) == "" {
		return "", fmt.Errorf("activity type and subject required")
	}
	if a.Status == "" {
		a.Status = "pending"
	}
	var id string
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO activities (user_id, contact_id, opportunity_id, type, subject, status, scheduled_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id
`, a.UserID, nullableString(a.ContactID), nullableString(a.OpportunityID), a.Type, a.Subject, a.Status, nullableTime(a.ScheduledAt)).Scan(&id)
	return id, err
}

// ListActivities returns the user's activities newest first, bounded by limit.
func (s *Store) ListActivities(ctx context.Context, userID string, limit int) ([]Activity, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, user_id, contact_id, opportunity_id, type, subject, status, scheduled_at, created_at
FROM activities
WHERE user_id=$1
ORDER BY created_at DESC
LIMIT $2
`, userID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var a Activity
		var userID, contactID, oppID sql.NullString
		var scheduled sql.NullTime
		if err := rows.Scan(&a.ID, &userID, &contactID, &oppID, &a.Type, &a.Subject, &a.Status, &scheduled, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.UserID = userID.String
		a.ContactID = contactID.String
		a.OpportunityID = oppID.String
		if scheduled.Valid {
			t := scheduled.Time
			a.ScheduledAt = &t
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
