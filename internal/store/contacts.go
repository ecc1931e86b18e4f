package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Contact is a CRM lead/contact row. SalesforceID/HubSpotID carry the
// external object ids when the record was synced from a remote CRM.
type Contact struct {
	ID           string
	UserID       string
	CompanyID    string
	FirstName    string
	LastName     string
	Email        string
	Phone        string
	Title        string
	Department   string
	LeadScore    int
	Status       string
	Tags         []string
	SalesforceID string
	HubSpotID    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const contactColumns = `id, user_id, company_id, first_name, last_name, email, phone, title, department, lead_score, status, tags, salesforce_id, hubspot_id, created_at, updated_at`

func scanContact(row interface{ Scan(...any) error }) (Contact, error) {
	var c Contact
	var userID, companyID, email, phone, title, dept, sfID, hsID sql.NullString
	if err := row.Scan(&c.ID, &userID, &companyID, &c.FirstName, &c.LastName, &email, &phone, &title, &dept,
		&c.LeadScore, &c.Status, pq.Array(&c.Tags), &sfID, &hsID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return Contact{}, err
	}
	c.UserID = userID.String
	c.CompanyID = companyID.String
	c.Email = email.String
	c.Phone = phone.String
	c.Title = title.String
	c.Department = dept.String
	c.SalesforceID = sfID.String
	c.HubSpotID = hsID.String
	return c, nil
}

// ListContacts returns the user's contacts in creation order, newest
// first, never more than MaxBatchLimit rows.
func (s *Store) ListContacts(ctx context.Context, userID string, limit int) ([]Contact, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT `+contactColumns+`
FROM contacts
WHERE user_id=$1
ORDER BY created_at DESC
LIMIT $2
`, userID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetContact fetches a single contact owned by the user.
func (s *Store) GetContact(ctx context.Context, userID, id string) (Contact, bool, error) {
	row := s.DB.QueryRowContext(ctx, `
SELECT `+contactColumns+`
FROM contacts
WHERE id=$1 AND user_id=$2
`, id, userID)
	c, err := scanContact(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return Contact{}, false, nil
		}
		return Contact{}, false, err
	}
	return c, true, nil
}

// CreateContact inserts a manually entered or synced contact.
func (s *Store) CreateContact(ctx context.Context, c Contact) (string, error) {
	if strings.TrimSpace(c.FirstName) == "" || strings.TrimSpace(c.LastName) == "" {
		return "", fmt.Errorf("contact name required")
	}
	if c.Status == "" {
		c.Status = ContactStatusNew
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
	var id string
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO contacts (user_id, company_id, first_name, last_name, email, phone, title, department, lead_score, status, tags, salesforce_id, hubspot_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
RETURNING id
`, c.UserID, nullableString(c.CompanyID), c.FirstName, c.LastName, nullableString(c.Email), nullableString(c.Phone),
		nullableString(c.Title), nullableString(c.Department), c.LeadScore, c.Status, pq.Array(c.Tags),
		nullableString(c.SalesforceID), nullableString(c.HubSpotID)).Scan(&id)
	return id, err
}

// UpdateContactAnalysis applies AI write-back to the mutable fields of a
// contact: lead_score, status and tags. Other fields stay human-owned.
func (s *Store) UpdateContactAnalysis(ctx context.Context, userID, id string, leadScore int, status string, tags []string) error {
	if leadScore < 0 {
		leadScore = 0
	}
	if leadScore > 100 {
		leadScore = 100
	}
	if status == "" {
		status = ContactStatusWorking
	}
	if tags == nil {
		tags = []string{}
	}
	res, err := s.DB.ExecContext(ctx, `
UPDATE contacts
SET lead_score=$3, status=$4, tags=$5, updated_at=NOW()
WHERE id=$1 AND user_id=$2
`, id, userID, leadScore, status, pq.Array(tags))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("contact %s not found", id)
	}
	return nil
}
