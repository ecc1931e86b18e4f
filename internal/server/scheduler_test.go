package server

import (
	"testing"
	"time"
)

func TestIsDueNeverRun(t *testing.T) {
	if !isDue("@daily", nil) {
		t.Fatalf("agent that never ran should be due")
	}
	if !isDue("0 9 * * *", nil) {
		t.Fatalf("cron agent that never ran should be due")
	}
}

func TestIsDueDaily(t *testing.T) {
	recent := time.Now().Add(-time.Hour)
	old := time.Now().Add(-25 * time.Hour)
	if isDue("@daily", &recent) {
		t.Fatalf("daily agent run an hour ago should not be due")
	}
	if !isDue("@daily", &old) {
		t.Fatalf("daily agent run 25h ago should be due")
	}
}

func TestIsDueHourly(t *testing.T) {
	recent := time.Now().Add(-10 * time.Minute)
	old := time.Now().Add(-2 * time.Hour)
	if isDue("@hourly", &recent) {
		t.Fatalf("hourly agent run 10m ago should not be due")
	}
	if !isDue("@hourly", &old) {
		t.Fatalf("hourly agent run 2h ago should be due")
	}
}

func TestIsDueCronExpression(t *testing.T) {
	// Every-minute cron: a run from five minutes ago is due again.
	last := time.Now().Add(-5 * time.Minute)
	if !isDue("* * * * *", &last) {
		t.Fatalf("every-minute cron should be due after 5 minutes")
	}
}

func TestIsDueInvalidSpecBehavesLikeDaily(t *testing.T) {
	recent := time.Now().Add(-time.Hour)
	if isDue("not a cron", &recent) {
		t.Fatalf("invalid spec run an hour ago should not be due")
	}
	old := time.Now().Add(-25 * time.Hour)
	if !isDue("not a cron", &old) {
		t.Fatalf("invalid spec run 25h ago should be due")
	}
}
