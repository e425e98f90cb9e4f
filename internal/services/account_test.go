package services

import (
	"context"
	"testing"

	"github.com/centraflow/banksync-backend/internal/errs"
	"github.com/centraflow/banksync-backend/internal/models"
	"github.com/centraflow/banksync-backend/pkg/helpers"
)

type accFakeAccountStore struct {
	accounts map[string]*models.Account
	created  []*models.Account
	updated  []*models.Account
}

func newAccFakeAccountStore() *accFakeAccountStore {
	return &accFakeAccountStore{accounts: map[string]*models.Account{}}
}

func (f *accFakeAccountStore) Create(ctx context.Context, tenantID string, acc *models.Account) error {
	f.accounts[acc.AccountID] = acc
	f.created = append(f.created, acc)
	return nil
}

func (f *accFakeAccountStore) Get(ctx context.Context, tenantID, accountID string) (*models.Account, error) {
	acc, ok := f.accounts[accountID]
	if !ok {
		return nil, errs.NewNotFoundError("account not found: " + accountID)
	}
	return acc, nil
}

func (f *accFakeAccountStore) Update(ctx context.Context, tenantID string, acc *models.Account) error {
	f.accounts[acc.AccountID] = acc
	f.updated = append(f.updated, acc)
	return nil
}

func (f *accFakeAccountStore) List(ctx context.Context, tenantID string) ([]*models.Account, error) {
	out := make([]*models.Account, 0, len(f.accounts))
	for _, acc := range f.accounts {
		out = append(out, acc)
	}
	return out, nil
}

type accFakeTxStore struct {
	listed []string
	txs    []*models.Transaction
}

func (f *accFakeTxStore) List(ctx context.Context, tenantID, accountID, from, to string) ([]*models.Transaction, error) {
	f.listed = append(f.listed, accountID+"/"+from+"/"+to)
	return f.txs, nil
}

func TestCreateManualAccountDefaults(t *testing.T) {
	store := newAccFakeAccountStore()
	svc := NewAccountService(store, &accFakeTxStore{})

	acc, err := svc.CreateManualAccount(helpers.TestCtx(), "tenant-1", &models.Account{
		DisplayName: "Cash",
		Currency:    "EUR",
		IBAN:        "de89 3704 0044 0532 0130 00",
	})
	if err != nil {
		t.Fatalf("CreateManualAccount returned error: %v", err)
	}
	if acc.AccountID == "" {
		t.Fatal("account id not assigned")
	}
	if !acc.NameCurated {
		t.Fatal("manual account name must be curated")
	}
	if acc.SyncEnabled {
		t.Fatal("manual account must not sync")
	}
	if acc.AccountType != models.AccountTypeChecking {
		t.Fatalf("type = %q, want checking default", acc.AccountType)
	}
	if acc.IBAN != "DE89370400440532013000" {
		t.Fatalf("iban not normalized: %q", acc.IBAN)
	}
}

func TestCreateManualAccountValidation(t *testing.T) {
	svc := NewAccountService(newAccFakeAccountStore(), &accFakeTxStore{})

	if _, err := svc.CreateManualAccount(helpers.TestCtx(), "tenant-1", &models.Account{Currency: "EUR"}); err == nil {
		t.Fatal("missing display name must fail")
	}
	if _, err := svc.CreateManualAccount(helpers.TestCtx(), "tenant-1", &models.Account{DisplayName: "Cash"}); err == nil {
		t.Fatal("missing currency must fail")
	}
}

func TestRenameAccountMarksCurated(t *testing.T) {
	store := newAccFakeAccountStore()
	store.accounts["a1"] = &models.Account{AccountID: "a1", DisplayName: "CHECKING 1"}
	svc := NewAccountService(store, &accFakeTxStore{})

	acc, err := svc.RenameAccount(helpers.TestCtx(), "tenant-1", "a1", "Household")
	if err != nil {
		t.Fatalf("RenameAccount returned error: %v", err)
	}
	if acc.DisplayName != "Household" || !acc.NameCurated {
		t.Fatalf("rename not applied: %+v", acc)
	}
	if len(store.updated) != 1 {
		t.Fatal("rename not persisted")
	}
}

func TestListTransactionsRequiresExistingAccount(t *testing.T) {
	store := newAccFakeAccountStore()
	txs := &accFakeTxStore{}
	svc := NewAccountService(store, txs)

	if _, err := svc.ListTransactions(helpers.TestCtx(), "tenant-1", "missing", "", ""); err == nil {
		t.Fatal("missing account must fail")
	}
	if len(txs.listed) != 0 {
		t.Fatal("transaction store queried for missing account")
	}

	store.accounts["a1"] = &models.Account{AccountID: "a1", Status: models.AccountClosed}
	if _, err := svc.ListTransactions(helpers.TestCtx(), "tenant-1", "a1", "2026-01-01", "2026-02-01"); err != nil {
		t.Fatalf("closed account must stay queryable: %v", err)
	}
	if len(txs.listed) != 1 || txs.listed[0] != "a1/2026-01-01/2026-02-01" {
		t.Fatalf("unexpected tx queries: %v", txs.listed)
	}
}
