package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Opportunity is a CRM deal row owned by a contact/company.
type Opportunity struct {
	ID                string
	UserID            string
	ContactID         string
	CompanyID         string
	Name              string
	Amount            float64
	Stage             string
	Probability       int
	Priority          string
	ExpectedCloseDate *time.Time
	SalesforceID      string
	HubSpotID         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

const opportunityColumns = `id, user_id, contact_id, company_id, name, amount, stage, probability, priority, expected_close_date, salesforce_id, hubspot_id, created_at, updated_at`

func scanOpportunity(row interface{ Scan(...any) error }) (Opportunity, error) {
	var o Opportunity
	var userID, contactID, companyID, priority, sfID, hsID sql.NullString
	var closeDate sql.NullTime
	if err := row.Scan(&o.ID, &userID, &contactID, &companyID, &o.Name, &o.Amount, &o.Stage, &o.Probability,
		&priority, &closeDate, &sfID, &hsID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return Opportunity{}, err
	}
	o.UserID = userID.String
	o.ContactID = contactID.String
	o.CompanyID = companyID.String
	o.Priority = priority.String
	o.SalesforceID = sfID.String
	o.HubSpotID = hsID.String
	if closeDate.Valid {
		t := closeDate.Time
		o.ExpectedCloseDate = &t
	}
	return o, nil
}

// ListOpportunities returns open deals newest first, bounded by limit.
func (s *Store) ListOpportunities(ctx context.Context, userID string, limit int) ([]Opportunity, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT `+opportunityColumns+`
FROM opportunities
WHERE user_id=$1
ORDER BY created_at DESC
LIMIT $2
`, userID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// GetOpportunity fetches a single deal owned by the user.
func (s *Store) GetOpportunity(ctx context.Context, userID, id string) (Opportunity, bool, error) {
	row := s.DB.QueryRowContext(ctx, `
SELECT `+opportunityColumns+`
FROM opportunities
WHERE id=$1 AND user_id=$2
`, id, userID)
	o, err := scanOpportunity(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return Opportunity{}, false, nil
		}
		return Opportunity{}, false, err
	}
	return o, true, nil
}

// CreateOpportunity inserts a new deal.
func (s *Store) CreateOpportunity(ctx context.Context, o Opportunity) (string, error) {
	if strings.TrimSpace(o.Name) == "" {
		return "", fmt.Errorf("opportunity name required")
	}
	if o.Stage == "" {
		o.Stage = StageProspecting
	}
	var id string
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO opportunities (user_id, contact_id, company_id, name, amount, stage, probability, priority, expected_close_date, salesforce_id, hubspot_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
RETURNING id
`, o.UserID, nullableString(o.ContactID), nullableString(o.CompanyID), o.Name, o.Amount, o.Stage, o.Probability,
		nullableString(o.Priority), nullableTime(o.ExpectedCloseDate), nullableString(o.SalesforceID), nullableString(o.HubSpotID)).Scan(&id)
	return id, err
}

// UpdateOpportunityAnalysis applies AI write-back to probability and
// priority only.
func (s *Store) UpdateOpportunityAnalysis(ctx context.Context, userID, id string, probability int, priority string) error {
	if probability < 0 {
		probability = 0
	}
	if probability > 100 {
		probability = 100
	}
	res, err := s.DB.ExecContext(ctx, `
UPDATE opportunities
SET probability=$3, priority=$4, updated_at=NOW()
WHERE id=$1 AND user_id=$2
`, id, userID, probability, nullableString(priority))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("opportunity %s not found", id)
	}
	return nil
}
