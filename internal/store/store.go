package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Store wraps the Postgres connection for all CRM entities.
type Store struct {
	DB *sql.DB
}

// Execution statuses persisted for agent runs. An execution row is
// append-only: it moves from running to exactly one terminal status.
const (
	ExecutionStatusRunning   = "running"
	ExecutionStatusCompleted = "completed"
	ExecutionStatusFailed    = "failed"
)

// Contact statuses used across the lead lifecycle.
const (
	ContactStatusNew       = "new"
	ContactStatusWorking   = "working"
	ContactStatusQualified = "qualified"
	ContactStatusCustomer  = "customer"
	ContactStatusLost      = "lost"
)

// Opportunity stages form a small ordered set; AI write-back touches
// probability and priority but never moves the stage on its own.
const (
	StageProspecting   = "prospecting"
	StageQualification = "qualification"
	StageProposal      = "proposal"
	StageNegotiation   = "negotiation"
	StageClosedWon     = "closed_won"
	StageClosedLost    = "closed_lost"
)

// MaxBatchLimit caps every list query used by the analysis pipeline.
const MaxBatchLimit = 50

// New creates a Store from an existing DB handle.
func New(db *sql.DB) *Store { return &Store{DB: db} }

// NewWithDSN opens a Postgres connection and pings it.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{DB: db}, nil
}

// clampLimit bounds a caller-provided limit to (0, MaxBatchLimit].
func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxBatchLimit {
		return MaxBatchLimit
	}
	return limit
}

func nullableString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func defaultJSON(b []byte) []byte {
	if len(b) == 0 {
		return []byte("{}")
	}
	return b
}
