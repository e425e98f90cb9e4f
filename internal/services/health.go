package services

import (
	"context"
	"time"

	"github.com/centraflow/banksync-backend/internal/config"
	"github.com/centraflow/banksync-backend/internal/dto"
	"github.com/centraflow/banksync-backend/internal/models"
)

// Health scoring weights and bounds. The score blends a short and a long
// success-rate window and subtracts a capped penalty for the current
// failure streak; the floor keeps one long streak from reading as zero.
const (
	healthShortWindow = 7 * 24 * time.Hour
	healthLongWindow  = 30 * 24 * time.Hour
	healthShortWeight = 0.7
	healthLongWeight  = 0.3
	healthStreakStep  = 0.05
	healthStreakCap   = 0.30
	healthFloor       = 0.05
)

type healthJobStore interface {
	ListRecent(ctx context.Context, tenantID, connectionID string, since time.Time) ([]*models.SyncJob, error)
}

type healthConnectionStore interface {
	Get(ctx context.Context, tenantID, connectionID string) (*models.Connection, error)
}

// healthTracker derives a connection's rolling reliability score from its
// sync job history. Bands are display/alerting only; nothing in the sync
// control flow branches on them.
type healthTracker struct {
	jobs        healthJobStore
	connections healthConnectionStore
	cfg         config.SyncConfig
	clockNow    func() time.Time
}

func NewHealthTracker(jobs healthJobStore, connections healthConnectionStore, cfg config.SyncConfig) *healthTracker {
	return &healthTracker{
		jobs:        jobs,
		connections: connections,
		cfg:         cfg,
		clockNow:    time.Now,
	}
}

// Score computes the health score for a connection given its recent jobs
// and current consecutive-failure streak. Pure; exported through
// RecordOutcome and GetHealth.
func Score(jobs []*models.SyncJob, consecutiveFailures int, now time.Time) float64 {
	short := successRate(jobs, now.Add(-healthShortWindow))
	long := successRate(jobs, now.Add(-healthLongWindow))

	score := healthShortWeight*short + healthLongWeight*long

	penalty := healthStreakStep * float64(consecutiveFailures)
	if penalty > healthStreakCap {
		penalty = healthStreakCap
	}
	score -= penalty

	if score < healthFloor {
		return healthFloor
	}
	if score > 1 {
		return 1
	}
	return score
}

// successRate counts partial outcomes as successes: data was delivered.
// An empty window reads as healthy; a brand-new connection starts at 1.0.
func successRate(jobs []*models.SyncJob, since time.Time) float64 {
	total, ok := 0, 0
	for _, j := range jobs {
		if j.StartedAt.Before(since) {
			continue
		}
		total++
		if j.Succeeded() {
			ok++
		}
	}
	if total == 0 {
		return 1
	}
	return float64(ok) / float64(total)
}

// RecordOutcome applies one finalized job to the connection's health state,
// mutating the connection in place: score, streak, status transitions, and
// the last-error message. The caller persists the connection.
func (h *healthTracker) RecordOutcome(ctx context.Context, tenantID string, conn *models.Connection, job *models.SyncJob) (float64, error) {
	now := h.clockNow()

	jobs, err := h.jobs.ListRecent(ctx, tenantID, conn.ConnectionID, now.Add(-healthLongWindow))
	if err != nil {
		return conn.HealthScore, err
	}

	if job.Succeeded() {
		conn.ConsecutiveFailures = 0
		conn.LastError = ""
		// Recovery is always possible: error connections come back on any
		// successful sync, and pending ones activate on their first.
		if conn.Status == models.ConnectionPending || conn.Status == models.ConnectionError {
			conn.Status = models.ConnectionActive
		}
	} else {
		conn.ConsecutiveFailures++
		if len(job.Errors) > 0 {
			conn.LastError = job.Errors[len(job.Errors)-1]
		}
		if conn.Status == models.ConnectionActive && conn.ConsecutiveFailures >= h.cfg.FailureThreshold {
			conn.Status = models.ConnectionError
		}
	}

	conn.HealthScore = Score(jobs, conn.ConsecutiveFailures, now)
	return conn.HealthScore, nil
}

// GetHealth is the operator-facing read projection.
func (h *healthTracker) GetHealth(ctx context.Context, tenantID, connectionID string) (dto.ConnectionHealth, error) {
	conn, err := h.connections.Get(ctx, tenantID, connectionID)
	if err != nil {
		return dto.ConnectionHealth{}, err
	}
	return dto.ConnectionHealth{
		ConnectionID:        conn.ConnectionID,
		Score:               conn.HealthScore,
		Band:                Band(conn.HealthScore),
		Status:              string(conn.Status),
		ConsecutiveFailures: conn.ConsecutiveFailures,
		LastSyncedAt:        conn.LastSyncedAt,
		LastError:           conn.LastError,
	}, nil
}

// Band maps a score to its display band.
func Band(score float64) string {
	switch {
	case score >= 0.90:
		return "excellent"
	case score >= 0.75:
		return "good"
	case score >= 0.50:
		return "fair"
	case score >= 0.25:
		return "poor"
	default:
		return "critical"
	}
}
