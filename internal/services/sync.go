package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/centraflow/banksync-backend/internal/config"
	"github.com/centraflow/banksync-backend/internal/dto"
	"github.com/centraflow/banksync-backend/internal/errs"
	"github.com/centraflow/banksync-backend/internal/models"
	"github.com/centraflow/banksync-backend/internal/provider"
	"github.com/centraflow/banksync-backend/pkg/helpers"
	"github.com/centraflow/banksync-backend/pkg/logger"
)

// --- Dependencies (minimal interfaces scoped to this service) ---

type syncConnectionStore interface {
	Get(ctx context.Context, tenantID, connectionID string) (*models.Connection, error)
	Update(ctx context.Context, tenantID string, conn *models.Connection) error
	List(ctx context.Context, tenantID string) ([]*models.Connection, error)
	AcquireSyncLock(ctx context.Context, tenantID, connectionID string, lease time.Duration) (bool, error)
	ReleaseSyncLock(ctx context.Context, tenantID, connectionID string) error
}

type syncCredentialStore interface {
	GetActive(ctx context.Context, tenantID, connectionID string) (*models.Credential, error)
	Update(ctx context.Context, tenantID string, cred *models.Credential) error
}

type syncAccountStore interface {
	ListByConnection(ctx context.Context, tenantID, connectionID string) ([]*models.Account, error)
}

type syncJobStore interface {
	Create(ctx context.Context, tenantID string, job *models.SyncJob) error
}

type syncMarkerStore interface {
	Get(ctx context.Context, tenantID, connectionID, externalAccountID string) (string, error)
	Set(ctx context.Context, tenantID, connectionID, externalAccountID, marker string) error
	Clear(ctx context.Context, tenantID, connectionID, externalAccountID string) error
}

type syncPlanner interface {
	Plan(accountType string, lastSyncedAt *time.Time, force bool) dto.SyncPlan
}

type accountReconciler interface {
	Reconcile(ctx context.Context, tenantID, connectionID, providerID string, incoming []dto.ProviderAccount) (dto.ReconcileResult, error)
}

type transactionImporter interface {
	Import(ctx context.Context, tenantID, connectionID, accountID string, batch []dto.ProviderTransaction) dto.ImportResult
}

type outcomeRecorder interface {
	RecordOutcome(ctx context.Context, tenantID string, conn *models.Connection, job *models.SyncJob) (float64, error)
}

type adapterRegistry interface {
	Get(providerID string) (provider.Adapter, error)
}

const fetchPageSize = 500

// syncService is the top-level orchestrator. Per connection it validates
// and refreshes the credential, asks the planner for a window, drives the
// provider adapter, feeds reconciliation and import, persists pagination
// markers, and records the outcome. Every error path resolves to a
// finalized SyncJob; nothing here may take the process down.
type syncService struct {
	registry    adapterRegistry
	connections syncConnectionStore
	credentials syncCredentialStore
	accounts    syncAccountStore
	jobs        syncJobStore
	markers     syncMarkerStore
	planner     syncPlanner
	reconciler  accountReconciler
	importer    transactionImporter
	health      outcomeRecorder
	cfg         config.SyncConfig
	clockNow    func() time.Time
}

func NewSyncService(
	registry adapterRegistry,
	connections syncConnectionStore,
	credentials syncCredentialStore,
	accounts syncAccountStore,
	jobs syncJobStore,
	markers syncMarkerStore,
	planner syncPlanner,
	reconciler accountReconciler,
	importer transactionImporter,
	health outcomeRecorder,
	cfg config.SyncConfig,
) *syncService {
	return &syncService{
		registry:    registry,
		connections: connections,
		credentials: credentials,
		accounts:    accounts,
		jobs:        jobs,
		markers:     markers,
		planner:     planner,
		reconciler:  reconciler,
		importer:    importer,
		health:      health,
		cfg:         cfg,
		clockNow:    time.Now,
	}
}

// RunSync executes one sync attempt for one connection. At most one sync
// runs per connection at a time; a second caller gets AlreadyExistsError
// while the lease is held. The lease expires on its own, so a crashed
// worker cannot wedge the connection.
func (s *syncService) RunSync(ctx context.Context, tenantID, connectionID string, force bool, trigger models.SyncTrigger) (dto.SyncResult, error) {
	conn, err := s.connections.Get(ctx, tenantID, connectionID)
	if err != nil {
		return dto.SyncResult{}, err
	}
	if !conn.Syncable() {
		return dto.SyncResult{}, errs.NewValidationError("connection is disabled: " + connectionID)
	}

	acquired, err := s.connections.AcquireSyncLock(ctx, tenantID, connectionID, s.cfg.LockLease)
	if err != nil {
		return dto.SyncResult{}, err
	}
	if !acquired {
		return dto.SyncResult{}, errs.NewAlreadyExistsError("sync already in progress for connection: " + connectionID)
	}
	defer func() {
		// Release with a fresh context: the sync budget may already be spent.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := s.connections.ReleaseSyncLock(releaseCtx, tenantID, connectionID); err != nil {
			logger.FromContext(ctx).Warn("sync lock release failed", "connection_id", connectionID, "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.SyncBudget)
	defer cancel()

	log, ctx := logger.With(ctx, "connection_id", connectionID, "provider_id", conn.ProviderID)

	job := &models.SyncJob{
		JobID:        uuid.NewString(),
		ConnectionID: connectionID,
		Trigger:      trigger,
		StartedAt:    s.clockNow(),
	}

	result, err := s.run(ctx, tenantID, conn, job, force)
	if err != nil {
		// run already folded the cause into the job; the recorded outcome
		// is the contract, the returned error is for the caller's log line.
		log.Warn("sync failed", "job_id", job.JobID, "error", err)
		return result, nil
	}

	log.Info("sync finished",
		"job_id", job.JobID,
		"outcome", job.Outcome,
		"reason", job.PlanReason,
		"accounts_created", job.AccountsCreated,
		"accounts_updated", job.AccountsUpdated,
		"transactions_imported", job.TransactionsImported)
	return result, nil
}

func (s *syncService) run(ctx context.Context, tenantID string, conn *models.Connection, job *models.SyncJob, force bool) (dto.SyncResult, error) {
	adapter, err := s.registry.Get(conn.ProviderID)
	if err != nil {
		return s.finish(ctx, tenantID, conn, job, err), err
	}

	// Step 1: token check. Never call the provider with a known-bad token.
	cred, err := s.credentials.GetActive(ctx, tenantID, conn.ConnectionID)
	if err != nil {
		return s.finish(ctx, tenantID, conn, job, err), err
	}
	if cred.Expired(s.clockNow()) {
		cred, err = s.refresh(ctx, tenantID, adapter, cred)
		if err != nil {
			return s.finish(ctx, tenantID, conn, job, err), err
		}
	}

	// Step 2: plan the window. Throttling is not an error; it records a
	// clean no-op job so the health window sees the attempt.
	plan := s.planner.Plan(s.backfillType(ctx, tenantID, conn.ConnectionID), conn.LastSyncedAt, force)
	job.PlanReason = string(plan.Reason)
	if plan.Skip {
		return s.finish(ctx, tenantID, conn, job, nil), nil
	}

	// Steps 3-4: fetch and reconcile accounts.
	provAccounts, err := adapter.FetchAccounts(ctx, cred)
	if err != nil {
		return s.finish(ctx, tenantID, conn, job, err), err
	}

	recon, err := s.reconciler.Reconcile(ctx, tenantID, conn.ConnectionID, conn.ProviderID, provAccounts)
	job.AccountsCreated = recon.Created
	job.AccountsUpdated = recon.Updated
	job.AccountsClosed = recon.Closed
	job.AccountsFailed = len(recon.Failed)
	for _, f := range recon.Failed {
		job.Errors = append(job.Errors, "account "+f.ExternalID+": "+f.Reason)
	}
	if err != nil {
		return s.finish(ctx, tenantID, conn, job, err), err
	}

	// Steps 4-5: import transactions per account, persisting every
	// pagination marker the adapter yields.
	accounts, err := s.accounts.ListByConnection(ctx, tenantID, conn.ConnectionID)
	if err != nil {
		return s.finish(ctx, tenantID, conn, job, err), err
	}
	for _, acc := range accounts {
		if !acc.SyncEnabled || acc.Status != models.AccountActive || acc.ExternalID == "" {
			continue
		}
		if err := s.syncAccount(ctx, tenantID, adapter, cred, conn, acc, plan, job); err != nil {
			return s.finish(ctx, tenantID, conn, job, err), err
		}
	}

	// Step 6: finalize and record.
	return s.finish(ctx, tenantID, conn, job, nil), nil
}

func (s *syncService) syncAccount(ctx context.Context, tenantID string, adapter provider.Adapter, cred *models.Credential, conn *models.Connection, acc *models.Account, plan dto.SyncPlan, job *models.SyncJob) error {
	marker, err := s.markers.Get(ctx, tenantID, conn.ConnectionID, acc.ExternalID)
	if err != nil {
		return err
	}

	for {
		page, err := adapter.FetchTransactions(ctx, cred, acc.ExternalID, dto.FetchOptions{
			StartDate: plan.Start,
			EndDate:   plan.End,
			Limit:     fetchPageSize,
			Marker:    marker,
		})
		if err != nil {
			return err
		}

		res := s.importer.Import(ctx, tenantID, conn.ConnectionID, acc.AccountID, page.Transactions)
		job.TransactionsImported += res.Imported
		job.TransactionsSkipped += res.Skipped
		job.TransactionsFailed += len(res.Failed)
		for _, f := range res.Failed {
			job.Errors = append(job.Errors, "transaction "+f.ExternalID+": "+f.Reason)
		}

		// Persist the marker before asking for the next page, so a crash
		// here resumes instead of re-reading the whole feed.
		if page.Marker != "" {
			if err := s.markers.Set(ctx, tenantID, conn.ConnectionID, acc.ExternalID, page.Marker); err != nil {
				return err
			}
			marker = page.Marker
		}

		if !page.HasMore {
			if page.Marker == "" && marker != "" {
				// Page-token feeds are done once drained; the next sync
				// starts from its own date window.
				return s.markers.Clear(ctx, tenantID, conn.ConnectionID, acc.ExternalID)
			}
			return nil
		}
	}
}

// refresh exchanges the refresh token for fresh material and persists it on
// the same credential record. A missing refresh path is terminal and is
// surfaced unchanged so run() can park the connection in error.
func (s *syncService) refresh(ctx context.Context, tenantID string, adapter provider.Adapter, cred *models.Credential) (*models.Credential, error) {
	refreshed, err := adapter.Refresh(ctx, cred)
	if err != nil {
		return nil, err
	}
	refreshed.CredentialID = cred.CredentialID
	refreshed.ConnectionID = cred.ConnectionID
	refreshed.CreatedAt = cred.CreatedAt
	if err := s.credentials.Update(ctx, tenantID, refreshed); err != nil {
		return nil, err
	}
	return refreshed, nil
}

// finish closes out the job whatever happened, feeds it to the health
// tracker, persists the connection, and shapes the caller-facing result.
func (s *syncService) finish(ctx context.Context, tenantID string, conn *models.Connection, job *models.SyncJob, cause error) dto.SyncResult {
	log := logger.FromContext(ctx)

	// Detach from the budget-bound context: when the budget itself is what
	// failed the sync, the job record and health update must still land.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	now := s.clockNow()
	job.FinishedAt = now

	switch {
	case cause != nil:
		job.Outcome = models.SyncFailure
		job.Errors = append(job.Errors, cause.Error())
	case job.AccountsFailed > 0 || job.TransactionsFailed > 0:
		job.Outcome = models.SyncPartial
	default:
		job.Outcome = models.SyncSuccess
	}

	if cause == nil && job.PlanReason != string(dto.ReasonThrottled) {
		conn.LastSyncedAt = helpers.Ptr(now)
		if job.Succeeded() {
			conn.LastSuccessfulSyncAt = helpers.Ptr(now)
		}
	}
	// A throttled skip keeps the schedule keyed to the last real sync, so
	// an early manual attempt cannot push the sweep out.
	if job.PlanReason == string(dto.ReasonThrottled) && conn.LastSyncedAt != nil {
		conn.NextSyncAt = helpers.Ptr(conn.LastSyncedAt.Add(s.cfg.Throttle))
	} else {
		conn.NextSyncAt = helpers.Ptr(now.Add(s.cfg.Throttle))
	}

	// Record the job first so the health window includes it.
	if err := s.jobs.Create(ctx, tenantID, job); err != nil {
		log.Error("sync job record failed", "job_id", job.JobID, "error", err)
	}
	if _, err := s.health.RecordOutcome(ctx, tenantID, conn, job); err != nil {
		log.Error("health update failed", "connection_id", conn.ConnectionID, "error", err)
	}

	// A missing refresh path is terminal until the user re-authorizes,
	// regardless of where the failure streak stands.
	if _, ok := cause.(*errs.TokenRefreshUnavailableError); ok {
		conn.Status = models.ConnectionError
		conn.LastError = cause.Error()
	}

	if err := s.connections.Update(ctx, tenantID, conn); err != nil {
		log.Error("connection update failed", "connection_id", conn.ConnectionID, "error", err)
	}

	return dto.SyncResult{
		JobID:                job.JobID,
		ConnectionID:         conn.ConnectionID,
		Outcome:              string(job.Outcome),
		PlanReason:           dto.PlanReason(job.PlanReason),
		AccountsCreated:      job.AccountsCreated,
		AccountsUpdated:      job.AccountsUpdated,
		AccountsClosed:       job.AccountsClosed,
		TransactionsImported: job.TransactionsImported,
		TransactionsSkipped:  job.TransactionsSkipped,
		TransactionsFailed:   job.TransactionsFailed,
		Errors:               job.Errors,
	}
}

// backfillType picks the account type that drives the backfill window for
// a connection. Any linked long-memory account stretches the window; with
// no linked accounts yet (first sync) the default window applies.
func (s *syncService) backfillType(ctx context.Context, tenantID, connectionID string) string {
	accounts, err := s.accounts.ListByConnection(ctx, tenantID, connectionID)
	if err != nil || len(accounts) == 0 {
		return models.AccountTypeChecking
	}
	t := accounts[0].AccountType
	for _, acc := range accounts {
		if acc.AccountType == models.AccountTypeSavings || acc.AccountType == models.AccountTypeInvestment {
			t = acc.AccountType
		}
	}
	return t
}

// SyncAllDue sweeps a tenant's connections, skipping disabled ones and any
// whose next-sync time has not arrived, and runs the rest concurrently
// with a bounded worker count. One connection's failure never touches
// another's outcome.
func (s *syncService) SyncAllDue(ctx context.Context, tenantID string, trigger models.SyncTrigger) (dto.SweepResult, error) {
	conns, err := s.connections.List(ctx, tenantID)
	if err != nil {
		return dto.SweepResult{}, err
	}

	now := s.clockNow()
	var due []*models.Connection
	sweep := dto.SweepResult{}
	for _, c := range conns {
		if !c.Syncable() || (c.NextSyncAt != nil && c.NextSyncAt.After(now)) {
			sweep.ConnectionsSkipped++
			continue
		}
		due = append(due, c)
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.SweepConcurrency)

	for _, c := range due {
		g.Go(func() error {
			res, err := s.RunSync(ctx, tenantID, c.ConnectionID, false, trigger)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				sweep.ConnectionsFailed++
			case res.Outcome == string(models.SyncFailure):
				sweep.ConnectionsFailed++
				sweep.Results = append(sweep.Results, res)
			default:
				sweep.ConnectionsSynced++
				sweep.Results = append(sweep.Results, res)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return sweep, err
	}
	return sweep, nil
}
