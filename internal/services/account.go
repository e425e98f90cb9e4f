package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/centraflow/banksync-backend/internal/errs"
	"github.com/centraflow/banksync-backend/internal/models"
	"github.com/centraflow/banksync-backend/pkg/logger"
)

type accountASStore interface {
	Create(ctx context.Context, tenantID string, acc *models.Account) error
	Get(ctx context.Context, tenantID, accountID string) (*models.Account, error)
	Update(ctx context.Context, tenantID string, acc *models.Account) error
	List(ctx context.Context, tenantID string) ([]*models.Account, error)
}

type transactionASStore interface {
	List(ctx context.Context, tenantID, accountID, from, to string) ([]*models.Transaction, error)
}

// accountService is the read surface over the canonical store, plus the
// manual-entry path for accounts that have no provider connection.
type accountService struct {
	accounts accountASStore
	txs      transactionASStore
	clockNow func() time.Time
}

func NewAccountService(accounts accountASStore, txs transactionASStore) *accountService {
	return &accountService{
		accounts: accounts,
		txs:      txs,
		clockNow: time.Now,
	}
}

func (s *accountService) ListAccounts(ctx context.Context, tenantID string) ([]*models.Account, error) {
	return s.accounts.List(ctx, tenantID)
}

func (s *accountService) GetAccount(ctx context.Context, tenantID, accountID string) (*models.Account, error) {
	return s.accounts.Get(ctx, tenantID, accountID)
}

// ListTransactions returns an account's transactions in the inclusive
// YYYY-MM-DD range; empty bounds are open-ended. Closed accounts stay
// queryable, only syncing stops.
func (s *accountService) ListTransactions(ctx context.Context, tenantID, accountID, from, to string) ([]*models.Transaction, error) {
	if _, err := s.accounts.Get(ctx, tenantID, accountID); err != nil {
		return nil, err
	}
	return s.txs.List(ctx, tenantID, accountID, from, to)
}

// CreateManualAccount adds a connection-less account. Its display name is
// curated from the start, so a later sync can never rename it even if
// reconciliation links it to a provider account by IBAN.
func (s *accountService) CreateManualAccount(ctx context.Context, tenantID string, acc *models.Account) (*models.Account, error) {
	if acc.DisplayName == "" {
		return nil, errs.NewValidationError("display name is required")
	}
	if acc.Currency == "" {
		return nil, errs.NewValidationError("currency is required")
	}

	acc.AccountID = uuid.NewString()
	acc.ConnectionID = ""
	acc.ProviderID = ""
	acc.ExternalID = ""
	acc.NameCurated = true
	acc.IBAN = NormalizeIBAN(acc.IBAN)
	acc.Status = models.AccountActive
	acc.SyncEnabled = false
	if acc.AccountType == "" {
		acc.AccountType = models.AccountTypeChecking
	}

	if err := s.accounts.Create(ctx, tenantID, acc); err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx)
	log.Info("manual account created", "account_id", acc.AccountID)
	return acc, nil
}

// RenameAccount sets a curated display name that sync will preserve.
func (s *accountService) RenameAccount(ctx context.Context, tenantID, accountID, name string) (*models.Account, error) {
	if name == "" {
		return nil, errs.NewValidationError("display name is required")
	}
	acc, err := s.accounts.Get(ctx, tenantID, accountID)
	if err != nil {
		return nil, err
	}
	acc.DisplayName = name
	acc.NameCurated = true
	if err := s.accounts.Update(ctx, tenantID, acc); err != nil {
		return nil, err
	}
	return acc, nil
}
