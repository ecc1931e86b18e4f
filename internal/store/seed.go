package store

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	seedFirstNames = []string{"Jane", "Alex", "Maria", "Tom", "Priya", "Diego", "Sofia", "Liam", "Nina", "Omar"}
	seedLastNames  = []string{"Doe", "Nguyen", "Garcia", "Smith", "Patel", "Kim", "Muller", "Rossi", "Novak", "Chen"}
	seedCompanies  = []string{"Acme Corp", "Globex", "Initech", "Umbrella Labs", "Stark Industries", "Wayne Enterprises", "Hooli", "Vandelay"}
	seedIndustries = []string{"software", "manufacturing", "retail", "finance", "healthcare"}
	seedTitles     = []string{"CEO", "VP Sales", "Engineering Manager", "Procurement Lead", "Head of Ops"}
	seedStages     = []string{StageProspecting, StageQualification, StageProposal, StageNegotiation}
	seedStatuses   = []string{ContactStatusNew, ContactStatusWorking, ContactStatusQualified}
)

// SeedCounts reports what a seed run created.
type SeedCounts struct {
	Companies     int `json:"companies"`
	Contacts      int `json:"contacts"`
	Opportunities int `json:"opportunities"`
	Activities    int `json:"activities"`
}

// SeedTestData generates a linked set of companies, contacts,
// opportunities and activities for the user. Seeded rows are flagged so
// ClearTestData can remove them without touching real records.
func (s *Store) SeedTestData(ctx context.Context, userID string, contacts int) (SeedCounts, error) {
	if contacts <= 0 {
		contacts = 10
	}
	if contacts > MaxBatchLimit {
		contacts = MaxBatchLimit
	}
	var counts SeedCounts

	companies := contacts/3 + 1
	companyIDs := make([]string, 0, companies)
	for i := 0; i < companies; i++ {
		name := fmt.Sprintf("%s %s", seedCompanies[rand.Intn(len(seedCompanies))], uuid.NewString()[:8])
		var id string
		err := s.DB.QueryRowContext(ctx, `
INSERT INTO companies (user_id, name, industry, size, seeded)
VALUES ($1,$2,$3,$4,TRUE)
RETURNING id
`, userID, name, seedIndustries[rand.Intn(len(seedIndustries))], fmt.Sprintf("%d", 10+rand.Intn(990))).Scan(&id)
		if err != nil {
			return counts, err
		}
		companyIDs = append(companyIDs, id)
		counts.Companies++
	}

	for i := 0; i < contacts; i++ {
		first := seedFirstNames[rand.Intn(len(seedFirstNames))]
		last := seedLastNames[rand.Intn(len(seedLastNames))]
		companyID := companyIDs[rand.Intn(len(companyIDs))]
		var contactID string
		err := s.DB.QueryRowContext(ctx, `
INSERT INTO contacts (user_id, company_id, first_name, last_name, email, title, lead_score, status, tags, seeded)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,TRUE)
RETURNING id
`, userID, companyID, first, last,
			fmt.Sprintf("%s.%s.%d@example.com", first, last, rand.Intn(10000)),
			seedTitles[rand.Intn(len(seedTitles))], rand.Intn(101),
			seedStatuses[rand.Intn(len(seedStatuses))], pq.Array([]string{"seed"})).Scan(&contactID)
		if err != nil {
			return counts, err
		}
		counts.Contacts++

		// Roughly half the contacts get an open deal.
		if rand.Intn(2) == 0 {
			var oppID string
			err := s.DB.QueryRowContext(ctx, `
INSERT INTO opportunities (user_id, contact_id, company_id, name, amount, stage, probability, seeded)
VALUES ($1,$2,$3,$4,$5,$6,$7,TRUE)
RETURNING id
`, userID, contactID, companyID, fmt.Sprintf("%s %s deal", first, last),
				float64(1000+rand.Intn(99000)), seedStages[rand.Intn(len(seedStages))], rand.Intn(101)).Scan(&oppID)
			if err != nil {
				return counts, err
			}
			counts.Opportunities++

			if rand.Intn(3) == 0 {
				_, err := s.DB.ExecContext(ctx, `
INSERT INTO activities (user_id, contact_id, opportunity_id, type, subject, seeded)
VALUES ($1,$2,$3,'call',$4,TRUE)
`, userID, contactID, oppID, fmt.Sprintf("Intro call with %s %s", first, last))
				if err != nil {
					return counts, err
				}
				counts.Activities++
			}
		}
	}
	return counts, nil
}

// ClearTestData bulk-deletes seeded rows for the user. This is the only
// hard-delete path for contacts and opportunities.
func (s *Store) ClearTestData(ctx context.Context, userID string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, q := range []string{
		`DELETE FROM activities WHERE user_id=$1 AND seeded`,
		`DELETE FROM opportunities WHERE user_id=$1 AND seeded`,
		`DELETE FROM contacts WHERE user_id=$1 AND seeded`,
		`DELETE FROM companies WHERE user_id=$1 AND seeded`,
	} {
		if _, err = tx.ExecContext(ctx, q, userID); err != nil {
			return err
		}
	}
	return tx.Commit()
}
