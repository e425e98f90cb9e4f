package services

import (
	"context"
	"testing"
	"time"

	"github.com/centraflow/banksync-backend/internal/dto"
	"github.com/centraflow/banksync-backend/internal/errs"
	"github.com/centraflow/banksync-backend/internal/models"
	"github.com/centraflow/banksync-backend/internal/provider"
	"github.com/centraflow/banksync-backend/pkg/helpers"
)

// --- Fakes ---

type fakeAdapter struct {
	id              string
	refreshErr      error
	refreshed       *models.Credential
	accounts        []dto.ProviderAccount
	accountsErr     error
	accountsBlock   bool
	pages           map[string][]dto.TransactionPage
	pageCursor      map[string]int
	fetchedMarkers  []string
	transactionsErr error
}

func (a *fakeAdapter) ID() string { return a.id }

func (a *fakeAdapter) AuthorizationURL(ctx context.Context, state, market string) (string, error) {
	return "https://example.test/auth?state=" + state, nil
}

func (a *fakeAdapter) ExchangeCode(ctx context.Context, code string) (*models.Credential, error) {
	return &models.Credential{AccessToken: "token-" + code, Status: models.CredentialActive}, nil
}

func (a *fakeAdapter) Refresh(ctx context.Context, cred *models.Credential) (*models.Credential, error) {
	if a.refreshErr != nil {
		return nil, a.refreshErr
	}
	return a.refreshed, nil
}

func (a *fakeAdapter) FetchAccounts(ctx context.Context, cred *models.Credential) ([]dto.ProviderAccount, error) {
	if a.accountsBlock {
		<-ctx.Done()
		return nil, errs.NewProviderUnavailableError(a.id, "fetch accounts: "+ctx.Err().Error())
	}
	if a.accountsErr != nil {
		return nil, a.accountsErr
	}
	return a.accounts, nil
}

func (a *fakeAdapter) FetchTransactions(ctx context.Context, cred *models.Credential, externalAccountID string, opts dto.FetchOptions) (dto.TransactionPage, error) {
	if a.transactionsErr != nil {
		return dto.TransactionPage{}, a.transactionsErr
	}
	a.fetchedMarkers = append(a.fetchedMarkers, opts.Marker)
	if a.pageCursor == nil {
		a.pageCursor = map[string]int{}
	}
	pages := a.pages[externalAccountID]
	i := a.pageCursor[externalAccountID]
	if i >= len(pages) {
		return dto.TransactionPage{}, nil
	}
	a.pageCursor[externalAccountID] = i + 1
	return pages[i], nil
}

type syncFakeConnStore struct {
	conns     map[string]*models.Connection
	locked    map[string]bool
	updates   int
	lockDeny  bool
	released  []string
	listOrder []string
}

func newSyncFakeConnStore(conns ...*models.Connection) *syncFakeConnStore {
	s := &syncFakeConnStore{conns: map[string]*models.Connection{}, locked: map[string]bool{}}
	for _, c := range conns {
		s.conns[c.ConnectionID] = c
		s.listOrder = append(s.listOrder, c.ConnectionID)
	}
	return s
}

func (s *syncFakeConnStore) Get(ctx context.Context, tenantID, connectionID string) (*models.Connection, error) {
	c, ok := s.conns[connectionID]
	if !ok {
		return nil, errs.NewNotFoundError("connection not found: " + connectionID)
	}
	return c, nil
}

func (s *syncFakeConnStore) Update(ctx context.Context, tenantID string, conn *models.Connection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.updates++
	s.conns[conn.ConnectionID] = conn
	return nil
}

func (s *syncFakeConnStore) List(ctx context.Context, tenantID string) ([]*models.Connection, error) {
	out := make([]*models.Connection, 0, len(s.listOrder))
	for _, id := range s.listOrder {
		out = append(out, s.conns[id])
	}
	return out, nil
}

func (s *syncFakeConnStore) AcquireSyncLock(ctx context.Context, tenantID, connectionID string, lease time.Duration) (bool, error) {
	if s.lockDeny || s.locked[connectionID] {
		return false, nil
	}
	s.locked[connectionID] = true
	return true, nil
}

func (s *syncFakeConnStore) ReleaseSyncLock(ctx context.Context, tenantID, connectionID string) error {
	s.locked[connectionID] = false
	s.released = append(s.released, connectionID)
	return nil
}

type syncFakeCredStore struct {
	creds   map[string]*models.Credential
	updated []*models.Credential
}

func (s *syncFakeCredStore) GetActive(ctx context.Context, tenantID, connectionID string) (*models.Credential, error) {
	c, ok := s.creds[connectionID]
	if !ok {
		return nil, errs.NewNotFoundError("no active credential for connection: " + connectionID)
	}
	return c, nil
}

func (s *syncFakeCredStore) Update(ctx context.Context, tenantID string, cred *models.Credential) error {
	s.updated = append(s.updated, cred)
	s.creds[cred.ConnectionID] = cred
	return nil
}

type syncFakeJobStore struct {
	created []*models.SyncJob
}

func (s *syncFakeJobStore) Create(ctx context.Context, tenantID string, job *models.SyncJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.created = append(s.created, job)
	return nil
}

func (s *syncFakeJobStore) ListRecent(ctx context.Context, tenantID, connectionID string, since time.Time) ([]*models.SyncJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*models.SyncJob
	for _, j := range s.created {
		if j.ConnectionID == connectionID && !j.StartedAt.Before(since) {
			out = append(out, j)
		}
	}
	return out, nil
}

type syncFakeMarkerStore struct {
	markers map[string]string
	sets    []string
	cleared []string
}

func newSyncFakeMarkerStore() *syncFakeMarkerStore {
	return &syncFakeMarkerStore{markers: map[string]string{}}
}

func (s *syncFakeMarkerStore) key(connectionID, externalAccountID string) string {
	return connectionID + "/" + externalAccountID
}

func (s *syncFakeMarkerStore) Get(ctx context.Context, tenantID, connectionID, externalAccountID string) (string, error) {
	return s.markers[s.key(connectionID, externalAccountID)], nil
}

func (s *syncFakeMarkerStore) Set(ctx context.Context, tenantID, connectionID, externalAccountID, marker string) error {
	s.markers[s.key(connectionID, externalAccountID)] = marker
	s.sets = append(s.sets, marker)
	return nil
}

func (s *syncFakeMarkerStore) Clear(ctx context.Context, tenantID, connectionID, externalAccountID string) error {
	delete(s.markers, s.key(connectionID, externalAccountID))
	s.cleared = append(s.cleared, s.key(connectionID, externalAccountID))
	return nil
}

// --- Fixture ---

type syncFixture struct {
	svc      *syncService
	now      time.Time
	adapter  *fakeAdapter
	conns    *syncFakeConnStore
	creds    *syncFakeCredStore
	accounts *reconcileFakeAccountStore
	jobs     *syncFakeJobStore
	markers  *syncFakeMarkerStore
	txs      *importerFakeTxStore
}

// newSyncFixture wires the orchestrator to fakes for the adapter and
// stores but real planner, reconciler, importer and health tracker.
func newSyncFixture(adapter *fakeAdapter, conns ...*models.Connection) *syncFixture {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cfg := testSyncConfig()
	cfg.SyncBudget = time.Minute
	cfg.LockLease = time.Minute
	// Fakes are not synchronized; keep sweeps sequential.
	cfg.SweepConcurrency = 1

	f := &syncFixture{
		now:      now,
		adapter:  adapter,
		conns:    newSyncFakeConnStore(conns...),
		creds:    &syncFakeCredStore{creds: map[string]*models.Credential{}},
		accounts: &reconcileFakeAccountStore{},
		jobs:     &syncFakeJobStore{},
		markers:  newSyncFakeMarkerStore(),
		txs:      newImporterFakeTxStore(),
	}

	planner := NewPlanner(cfg)
	planner.clockNow = func() time.Time { return now }
	reconciler := testReconciler(f.accounts)
	importer := NewImporter(f.txs)
	health := NewHealthTracker(f.jobs, f.conns, cfg)
	health.clockNow = func() time.Time { return now }

	f.svc = NewSyncService(provider.NewRegistry(adapter), f.conns, f.creds, f.accounts, f.jobs, f.markers, planner, reconciler, importer, health, cfg)
	f.svc.clockNow = func() time.Time { return now }
	return f
}

func activeConn(id string) *models.Connection {
	return &models.Connection{
		ConnectionID: id,
		ProviderID:   "tink",
		Status:       models.ConnectionActive,
		HealthScore:  1.0,
	}
}

func activeCred(connectionID string) *models.Credential {
	return &models.Credential{
		CredentialID: "cred-" + connectionID,
		ConnectionID: connectionID,
		AccessToken:  "token",
		Status:       models.CredentialActive,
	}
}

// --- Tests ---

func TestRunSyncFirstSyncImportsEverything(t *testing.T) {
	adapter := &fakeAdapter{
		id: "tink",
		accounts: []dto.ProviderAccount{
			{ExternalID: "ext-1", Name: "Main", Currency: "EUR", Balance: 100},
		},
		pages: map[string][]dto.TransactionPage{
			"ext-1": {
				{Transactions: []dto.ProviderTransaction{
					{ExternalID: "t1", Date: "2026-03-01", Amount: -5},
					{ExternalID: "t2", Date: "2026-03-02", Amount: 20},
				}},
			},
		},
	}
	f := newSyncFixture(adapter, activeConn("conn-1"))
	f.creds.creds["conn-1"] = activeCred("conn-1")

	result, err := f.svc.RunSync(helpers.TestCtx(), "tenant-1", "conn-1", false, models.TriggerManual)
	if err != nil {
		t.Fatalf("RunSync returned error: %v", err)
	}
	if result.Outcome != string(models.SyncSuccess) {
		t.Fatalf("outcome = %q, want success: %+v", result.Outcome, result)
	}
	if result.PlanReason != dto.ReasonInitial {
		t.Fatalf("reason = %q, want initial", result.PlanReason)
	}
	if result.AccountsCreated != 1 || result.TransactionsImported != 2 {
		t.Fatalf("result = %+v, want 1 account and 2 transactions", result)
	}

	conn := f.conns.conns["conn-1"]
	if conn.LastSyncedAt == nil || !conn.LastSyncedAt.Equal(f.now) {
		t.Fatalf("LastSyncedAt not set: %+v", conn)
	}
	if conn.NextSyncAt == nil || !conn.NextSyncAt.Equal(f.now.Add(20*time.Hour)) {
		t.Fatalf("NextSyncAt not throttle-spaced: %+v", conn.NextSyncAt)
	}
	if len(f.jobs.created) != 1 || f.jobs.created[0].Outcome != models.SyncSuccess {
		t.Fatalf("job not recorded: %+v", f.jobs.created)
	}
	if f.conns.locked["conn-1"] {
		t.Fatal("sync lock not released")
	}
}

func TestRunSyncThrottledRecordsNoOpJob(t *testing.T) {
	adapter := &fakeAdapter{id: "tink"}
	conn := activeConn("conn-1")
	last := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) // 3h before fixture now
	conn.LastSyncedAt = &last
	f := newSyncFixture(adapter, conn)
	f.creds.creds["conn-1"] = activeCred("conn-1")

	result, err := f.svc.RunSync(helpers.TestCtx(), "tenant-1", "conn-1", false, models.TriggerScheduled)
	if err != nil {
		t.Fatalf("RunSync returned error: %v", err)
	}
	if result.Outcome != string(models.SyncSuccess) || result.PlanReason != dto.ReasonThrottled {
		t.Fatalf("result = %+v, want throttled success", result)
	}
	if result.TransactionsImported != 0 {
		t.Fatalf("throttled sync imported data: %+v", result)
	}
	if !conn.LastSyncedAt.Equal(last) {
		t.Fatalf("throttled sync moved LastSyncedAt to %v", conn.LastSyncedAt)
	}
	if len(f.jobs.created) != 1 {
		t.Fatalf("throttled attempt must still record a job, got %d", len(f.jobs.created))
	}
	// The schedule stays keyed to the last real sync; an early manual
	// attempt must not push the next sweep out.
	wantNext := last.Add(20 * time.Hour)
	if conn.NextSyncAt == nil || !conn.NextSyncAt.Equal(wantNext) {
		t.Fatalf("NextSyncAt = %v, want %v", conn.NextSyncAt, wantNext)
	}
}

func TestRunSyncDisabledConnectionRejected(t *testing.T) {
	conn := activeConn("conn-1")
	conn.Status = models.ConnectionDisabled
	f := newSyncFixture(&fakeAdapter{id: "tink"}, conn)

	_, err := f.svc.RunSync(helpers.TestCtx(), "tenant-1", "conn-1", false, models.TriggerManual)
	if _, ok := err.(*errs.ValidationError); !ok {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if len(f.jobs.created) != 0 {
		t.Fatal("disabled connection must not record a job")
	}
}

func TestRunSyncLockContention(t *testing.T) {
	f := newSyncFixture(&fakeAdapter{id: "tink"}, activeConn("conn-1"))
	f.conns.lockDeny = true

	_, err := f.svc.RunSync(helpers.TestCtx(), "tenant-1", "conn-1", false, models.TriggerManual)
	if _, ok := err.(*errs.AlreadyExistsError); !ok {
		t.Fatalf("error = %v, want AlreadyExistsError", err)
	}
}

func TestRunSyncRefreshUnavailableParksConnection(t *testing.T) {
	adapter := &fakeAdapter{
		id:         "tink",
		refreshErr: errs.NewTokenRefreshUnavailableError("tink", "re-authorization required"),
	}
	conn := activeConn("conn-1")
	f := newSyncFixture(adapter, conn)

	expired := f.now.Add(-time.Hour)
	cred := activeCred("conn-1")
	cred.ExpiresAt = &expired
	cred.RefreshToken = "refresh"
	f.creds.creds["conn-1"] = cred

	result, err := f.svc.RunSync(helpers.TestCtx(), "tenant-1", "conn-1", false, models.TriggerManual)
	if err != nil {
		t.Fatalf("RunSync returned error: %v", err)
	}
	if result.Outcome != string(models.SyncFailure) {
		t.Fatalf("outcome = %q, want failure", result.Outcome)
	}
	if conn.Status != models.ConnectionError {
		t.Fatalf("status = %q, want error", conn.Status)
	}
	if len(f.jobs.created) != 1 || f.jobs.created[0].Outcome != models.SyncFailure {
		t.Fatalf("failed job not recorded: %+v", f.jobs.created)
	}
	if f.conns.locked["conn-1"] {
		t.Fatal("sync lock not released after failure")
	}
}

func TestRunSyncRefreshPersistsNewToken(t *testing.T) {
	refreshed := &models.Credential{
		AccessToken:  "fresh",
		RefreshToken: "fresh-refresh",
		Status:       models.CredentialActive,
	}
	adapter := &fakeAdapter{id: "tink", refreshed: refreshed}
	f := newSyncFixture(adapter, activeConn("conn-1"))

	expired := f.now.Add(-time.Hour)
	cred := activeCred("conn-1")
	cred.ExpiresAt = &expired
	cred.RefreshToken = "refresh"
	f.creds.creds["conn-1"] = cred

	result, err := f.svc.RunSync(helpers.TestCtx(), "tenant-1", "conn-1", false, models.TriggerManual)
	if err != nil {
		t.Fatalf("RunSync returned error: %v", err)
	}
	if result.Outcome != string(models.SyncSuccess) {
		t.Fatalf("outcome = %q, want success: %+v", result.Outcome, result)
	}
	if len(f.creds.updated) != 1 {
		t.Fatalf("refreshed credential not persisted, %d updates", len(f.creds.updated))
	}
	got := f.creds.updated[0]
	if got.CredentialID != "cred-conn-1" || got.ConnectionID != "conn-1" {
		t.Fatalf("refresh must keep the credential identity: %+v", got)
	}
	if got.AccessToken != "fresh" {
		t.Fatalf("access token = %q, want fresh", got.AccessToken)
	}
}

func TestRunSyncPersistsMarkerPerPage(t *testing.T) {
	adapter := &fakeAdapter{
		id:       "tink",
		accounts: []dto.ProviderAccount{{ExternalID: "ext-1", Name: "Main"}},
		pages: map[string][]dto.TransactionPage{
			"ext-1": {
				{
					Transactions: []dto.ProviderTransaction{{ExternalID: "t1", Date: "2026-03-01"}},
					Marker:       "page-2",
					HasMore:      true,
				},
				{
					Transactions: []dto.ProviderTransaction{{ExternalID: "t2", Date: "2026-03-02"}},
					Marker:       "",
					HasMore:      false,
				},
			},
		},
	}
	f := newSyncFixture(adapter, activeConn("conn-1"))
	f.creds.creds["conn-1"] = activeCred("conn-1")

	result, err := f.svc.RunSync(helpers.TestCtx(), "tenant-1", "conn-1", false, models.TriggerManual)
	if err != nil {
		t.Fatalf("RunSync returned error: %v", err)
	}
	if result.TransactionsImported != 2 {
		t.Fatalf("imported = %d, want 2", result.TransactionsImported)
	}
	if len(f.markers.sets) != 1 || f.markers.sets[0] != "page-2" {
		t.Fatalf("marker sets = %v, want [page-2]", f.markers.sets)
	}
	// The second fetch must resume from the persisted marker, and a drained
	// page-token feed clears it.
	if len(adapter.fetchedMarkers) != 2 || adapter.fetchedMarkers[1] != "page-2" {
		t.Fatalf("fetched markers = %v", adapter.fetchedMarkers)
	}
	if len(f.markers.cleared) != 1 {
		t.Fatalf("drained feed must clear its marker, cleared = %v", f.markers.cleared)
	}
}

func TestRunSyncProviderOutageRecordsFailure(t *testing.T) {
	adapter := &fakeAdapter{
		id:          "tink",
		accountsErr: errs.NewProviderUnavailableError("tink", "upstream 502"),
	}
	conn := activeConn("conn-1")
	f := newSyncFixture(adapter, conn)
	f.creds.creds["conn-1"] = activeCred("conn-1")

	result, err := f.svc.RunSync(helpers.TestCtx(), "tenant-1", "conn-1", false, models.TriggerManual)
	if err != nil {
		t.Fatalf("RunSync returned error: %v", err)
	}
	if result.Outcome != string(models.SyncFailure) {
		t.Fatalf("outcome = %q, want failure", result.Outcome)
	}
	if conn.ConsecutiveFailures != 1 {
		t.Fatalf("streak = %d, want 1", conn.ConsecutiveFailures)
	}
	if conn.Status != models.ConnectionActive {
		t.Fatalf("one failure must not flip status, got %q", conn.Status)
	}
	if conn.LastSuccessfulSyncAt != nil {
		t.Fatal("failed sync must not touch LastSuccessfulSyncAt")
	}
}

func TestRunSyncBudgetExpiryStillRecordsJob(t *testing.T) {
	adapter := &fakeAdapter{id: "tink", accountsBlock: true}
	conn := activeConn("conn-1")
	f := newSyncFixture(adapter, conn)
	f.creds.creds["conn-1"] = activeCred("conn-1")
	f.svc.cfg.SyncBudget = 50 * time.Millisecond

	result, err := f.svc.RunSync(helpers.TestCtx(), "tenant-1", "conn-1", false, models.TriggerManual)
	if err != nil {
		t.Fatalf("RunSync returned error: %v", err)
	}
	if result.Outcome != string(models.SyncFailure) {
		t.Fatalf("outcome = %q, want failure", result.Outcome)
	}

	// The fakes reject writes on a dead context, so these only pass when
	// the close-out runs detached from the expired budget.
	if len(f.jobs.created) != 1 {
		t.Fatalf("recorded jobs = %d, want 1 after budget expiry", len(f.jobs.created))
	}
	if f.jobs.created[0].Outcome != models.SyncFailure {
		t.Fatalf("job outcome = %q, want failure", f.jobs.created[0].Outcome)
	}
	if conn.ConsecutiveFailures != 1 {
		t.Fatalf("streak = %d, want 1", conn.ConsecutiveFailures)
	}
	if f.conns.updates == 0 {
		t.Fatal("connection not persisted after budget expiry")
	}
	if len(f.conns.released) != 1 {
		t.Fatalf("lock releases = %d, want 1", len(f.conns.released))
	}
}

func TestSyncAllDueSkipsNotDueAndIsolatesFailures(t *testing.T) {
	healthy := activeConn("conn-ok")
	broken := activeConn("conn-bad")
	broken.ProviderID = "plaid" // not registered in the fixture
	notDue := activeConn("conn-wait")
	future := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)
	notDue.NextSyncAt = &future
	disabled := activeConn("conn-off")
	disabled.Status = models.ConnectionDisabled

	adapter := &fakeAdapter{
		id:       "tink",
		accounts: []dto.ProviderAccount{{ExternalID: "ext-1", Name: "Main"}},
		pages: map[string][]dto.TransactionPage{
			"ext-1": {{Transactions: []dto.ProviderTransaction{{ExternalID: "t1", Date: "2026-03-01"}}}},
		},
	}
	f := newSyncFixture(adapter, healthy, broken, notDue, disabled)
	f.creds.creds["conn-ok"] = activeCred("conn-ok")
	f.creds.creds["conn-bad"] = activeCred("conn-bad")

	sweep, err := f.svc.SyncAllDue(helpers.TestCtx(), "tenant-1", models.TriggerScheduled)
	if err != nil {
		t.Fatalf("SyncAllDue returned error: %v", err)
	}
	if sweep.ConnectionsSkipped != 2 {
		t.Fatalf("skipped = %d, want 2 (not due, disabled)", sweep.ConnectionsSkipped)
	}
	if sweep.ConnectionsSynced != 1 {
		t.Fatalf("synced = %d, want 1", sweep.ConnectionsSynced)
	}
	if sweep.ConnectionsFailed != 1 {
		t.Fatalf("failed = %d, want 1", sweep.ConnectionsFailed)
	}
}
