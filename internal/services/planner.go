package services

import (
	"time"

	"github.com/centraflow/banksync-backend/internal/config"
	"github.com/centraflow/banksync-backend/internal/dto"
	"github.com/centraflow/banksync-backend/internal/models"
)

// planner decides how much transaction history a sync should request, and
// whether to run at all. It is pure: the only inputs are the last-sync
// timestamp, the account type, the force flag and the clock. Every window
// it emits overlaps the previous one by at least a day, so provider-side
// posting delays cannot lose transactions.
type planner struct {
	cfg      config.SyncConfig
	clockNow func() time.Time
}

func NewPlanner(cfg config.SyncConfig) *planner {
	return &planner{
		cfg:      cfg,
		clockNow: time.Now,
	}
}

func (p *planner) Plan(accountType string, lastSyncedAt *time.Time, force bool) dto.SyncPlan {
	now := p.clockNow()

	if lastSyncedAt == nil {
		return p.backfill(accountType, now, dto.ReasonInitial)
	}
	if force {
		return p.backfill(accountType, now, dto.ReasonForced)
	}

	elapsed := now.Sub(*lastSyncedAt)

	if elapsed < p.cfg.Throttle {
		return dto.SyncPlan{Skip: true, Reason: dto.ReasonThrottled}
	}

	day := 24 * time.Hour
	switch {
	case elapsed <= time.Duration(p.cfg.IncrementalDays)*day:
		return dto.SyncPlan{
			Start:  overlapStart(now, *lastSyncedAt, p.cfg.IncrementalDays),
			End:    now,
			Reason: dto.ReasonIncremental,
		}
	case elapsed <= time.Duration(p.cfg.CatchUpDays)*day:
		return dto.SyncPlan{
			Start:  overlapStart(now, *lastSyncedAt, p.cfg.CatchUpDays),
			End:    now,
			Reason: dto.ReasonCatchUp,
		}
	default:
		// A gap this large means missed syncs, not drift: re-backfill.
		return p.backfill(accountType, now, dto.ReasonBackfill)
	}
}

// overlapStart widens the nominal window when needed so it always reaches
// back at least one day before the previous sync. That overlap is what
// tolerates provider-side posting delays.
func overlapStart(now, lastSyncedAt time.Time, days int) time.Time {
	start := now.AddDate(0, 0, -days)
	if overlap := lastSyncedAt.AddDate(0, 0, -1); overlap.Before(start) {
		return overlap
	}
	return start
}

func (p *planner) backfill(accountType string, now time.Time, reason dto.PlanReason) dto.SyncPlan {
	days := p.cfg.BackfillDays
	switch accountType {
	case models.AccountTypeSavings, models.AccountTypeInvestment:
		// Low-turnover accounts carry long memory; fetch up to a year.
		days = p.cfg.LongBackfillDays
	}
	return dto.SyncPlan{
		Start:  now.AddDate(0, 0, -days),
		End:    now,
		Reason: reason,
	}
}
