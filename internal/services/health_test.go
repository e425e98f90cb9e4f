package services

import (
	"context"
	"testing"
	"time"

	"github.com/centraflow/banksync-backend/internal/config"
	"github.com/centraflow/banksync-backend/internal/models"
	"github.com/centraflow/banksync-backend/pkg/helpers"
)

type healthFakeJobStore struct {
	jobs []*models.SyncJob
}

func (f *healthFakeJobStore) ListRecent(ctx context.Context, tenantID, connectionID string, since time.Time) ([]*models.SyncJob, error) {
	var out []*models.SyncJob
	for _, j := range f.jobs {
		if !j.StartedAt.Before(since) {
			out = append(out, j)
		}
	}
	return out, nil
}

type healthFakeConnStore struct {
	conn *models.Connection
}

func (f *healthFakeConnStore) Get(ctx context.Context, tenantID, connectionID string) (*models.Connection, error) {
	return f.conn, nil
}

func jobAt(now time.Time, ago time.Duration, outcome models.SyncOutcome) *models.SyncJob {
	return &models.SyncJob{StartedAt: now.Add(-ago), Outcome: outcome}
}

func TestScoreAllSuccesses(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	jobs := []*models.SyncJob{
		jobAt(now, 24*time.Hour, models.SyncSuccess),
		jobAt(now, 5*24*time.Hour, models.SyncSuccess),
		jobAt(now, 20*24*time.Hour, models.SyncSuccess),
	}
	if got := Score(jobs, 0, now); got != 1.0 {
		t.Fatalf("Score = %v, want 1.0", got)
	}
}

func TestScoreEmptyHistoryReadsHealthy(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	if got := Score(nil, 0, now); got != 1.0 {
		t.Fatalf("Score = %v, want 1.0", got)
	}
}

func TestScorePartialCountsAsSuccess(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	jobs := []*models.SyncJob{
		jobAt(now, 24*time.Hour, models.SyncPartial),
		jobAt(now, 48*time.Hour, models.SyncSuccess),
	}
	if got := Score(jobs, 0, now); got != 1.0 {
		t.Fatalf("Score = %v, want 1.0", got)
	}
}

func TestScoreStreakPenaltyIsCapped(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	jobs := []*models.SyncJob{jobAt(now, 24*time.Hour, models.SyncSuccess)}

	six := Score(jobs, 6, now)
	twenty := Score(jobs, 20, now)
	if six != twenty {
		t.Fatalf("penalty not capped: streak 6 = %v, streak 20 = %v", six, twenty)
	}
	if want := 1.0 - 0.30; six != want {
		t.Fatalf("capped score = %v, want %v", six, want)
	}
}

func TestScoreNeverBelowFloor(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	var jobs []*models.SyncJob
	for d := 1; d <= 10; d++ {
		jobs = append(jobs, jobAt(now, time.Duration(d)*24*time.Hour, models.SyncFailure))
	}
	if got := Score(jobs, 50, now); got != 0.05 {
		t.Fatalf("Score = %v, want floor 0.05", got)
	}
}

func TestScoreWeighsShortWindowHeavier(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	// Failures in the last week, successes before it. Short rate 0, long
	// rate 0.5, no streak: 0.7*0 + 0.3*0.5 = 0.15.
	jobs := []*models.SyncJob{
		jobAt(now, 24*time.Hour, models.SyncFailure),
		jobAt(now, 48*time.Hour, models.SyncFailure),
		jobAt(now, 10*24*time.Hour, models.SyncSuccess),
		jobAt(now, 12*24*time.Hour, models.SyncSuccess),
	}
	got := Score(jobs, 0, now)
	if got < 0.1499 || got > 0.1501 {
		t.Fatalf("Score = %v, want 0.15", got)
	}
}

func TestScoreNeverFallsWhileSuccessesAccumulate(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	// A rough patch, then nothing but successes. Each new success can
	// only raise the window rates, so the score must never decrease.
	jobs := []*models.SyncJob{
		jobAt(now, 25*24*time.Hour, models.SyncFailure),
		jobAt(now, 20*24*time.Hour, models.SyncFailure),
		jobAt(now, 6*24*time.Hour, models.SyncFailure),
	}
	prev := Score(jobs, 0, now)
	for i := 1; i <= 10; i++ {
		jobs = append(jobs, jobAt(now, time.Duration(i)*time.Minute, models.SyncSuccess))
		got := Score(jobs, 0, now)
		if got < prev {
			t.Fatalf("score fell from %v to %v after success %d", prev, got, i)
		}
		prev = got
	}
}

func TestBands(t *testing.T) {
	cases := map[float64]string{
		1.0:  "excellent",
		0.90: "excellent",
		0.80: "good",
		0.60: "fair",
		0.30: "poor",
		0.05: "critical",
	}
	for score, want := range cases {
		if got := Band(score); got != want {
			t.Fatalf("Band(%v) = %q, want %q", score, got, want)
		}
	}
}

func TestRecordOutcomeSuccessResetsStreakAndRecovers(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tracker := NewHealthTracker(&healthFakeJobStore{}, &healthFakeConnStore{}, config.SyncConfig{FailureThreshold: 5})
	tracker.clockNow = func() time.Time { return now }

	conn := &models.Connection{
		ConnectionID:        "conn-1",
		Status:              models.ConnectionError,
		ConsecutiveFailures: 3,
		LastError:           "token expired",
	}
	job := &models.SyncJob{StartedAt: now, Outcome: models.SyncSuccess}

	score, err := tracker.RecordOutcome(helpers.TestCtx(), "tenant-1", conn, job)
	if err != nil {
		t.Fatalf("RecordOutcome returned error: %v", err)
	}
	if conn.ConsecutiveFailures != 0 || conn.LastError != "" {
		t.Fatalf("streak not reset: %+v", conn)
	}
	if conn.Status != models.ConnectionActive {
		t.Fatalf("status = %q, want active", conn.Status)
	}
	if score != conn.HealthScore {
		t.Fatalf("returned score %v != stored %v", score, conn.HealthScore)
	}
}

func TestRecordOutcomeFailureThresholdFlipsStatus(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tracker := NewHealthTracker(&healthFakeJobStore{}, &healthFakeConnStore{}, config.SyncConfig{FailureThreshold: 5})
	tracker.clockNow = func() time.Time { return now }

	conn := &models.Connection{ConnectionID: "conn-1", Status: models.ConnectionActive}
	for i := 0; i < 4; i++ {
		job := &models.SyncJob{StartedAt: now, Outcome: models.SyncFailure, Errors: []string{"provider down"}}
		if _, err := tracker.RecordOutcome(helpers.TestCtx(), "tenant-1", conn, job); err != nil {
			t.Fatalf("RecordOutcome returned error: %v", err)
		}
		if conn.Status != models.ConnectionActive {
			t.Fatalf("flipped to error after %d failures", i+1)
		}
	}

	job := &models.SyncJob{StartedAt: now, Outcome: models.SyncFailure, Errors: []string{"provider down"}}
	if _, err := tracker.RecordOutcome(helpers.TestCtx(), "tenant-1", conn, job); err != nil {
		t.Fatalf("RecordOutcome returned error: %v", err)
	}
	if conn.Status != models.ConnectionError {
		t.Fatalf("status = %q, want error after threshold", conn.Status)
	}
	if conn.ConsecutiveFailures != 5 {
		t.Fatalf("streak = %d, want 5", conn.ConsecutiveFailures)
	}
	if conn.LastError != "provider down" {
		t.Fatalf("last error = %q", conn.LastError)
	}
}

func TestGetHealthProjection(t *testing.T) {
	conn := &models.Connection{
		ConnectionID: "conn-1",
		Status:       models.ConnectionActive,
		HealthScore:  0.82,
	}
	tracker := NewHealthTracker(&healthFakeJobStore{}, &healthFakeConnStore{conn: conn}, config.SyncConfig{})

	health, err := tracker.GetHealth(helpers.TestCtx(), "tenant-1", "conn-1")
	if err != nil {
		t.Fatalf("GetHealth returned error: %v", err)
	}
	if health.Score != 0.82 || health.Band != "good" {
		t.Fatalf("health = %+v, want score 0.82 band good", health)
	}
}
