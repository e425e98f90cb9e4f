package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/centraflow/banksync-backend/internal/dto"
	"github.com/centraflow/banksync-backend/internal/errs"
	"github.com/centraflow/banksync-backend/internal/models"
	"github.com/centraflow/banksync-backend/pkg/logger"
)

// reconcileAccountStore is the minimal store surface the reconciler needs.
// The Find methods return all matches so ambiguity is detectable.
type reconcileAccountStore interface {
	Create(ctx context.Context, tenantID string, acc *models.Account) error
	Update(ctx context.Context, tenantID string, acc *models.Account) error
	ListByConnection(ctx context.Context, tenantID, connectionID string) ([]*models.Account, error)
	FindByIBAN(ctx context.Context, tenantID, iban string) ([]*models.Account, error)
	FindByExternalID(ctx context.Context, tenantID, providerID, externalID string) ([]*models.Account, error)
	FindByBankDetails(ctx context.Context, tenantID, bankName, accountNumber string) ([]*models.Account, error)
}

// reconciler deduplicates incoming provider accounts against canonical
// accounts using a tiered matching strategy, and detects bank-side account
// closure.
type reconciler struct {
	accounts reconcileAccountStore
	clockNow func() time.Time
	newID    func() string
}

func NewReconciler(accounts reconcileAccountStore) *reconciler {
	return &reconciler{
		accounts: accounts,
		clockNow: time.Now,
		newID:    func() string { return uuid.NewString() },
	}
}

// Reconcile upserts the full current set of one connection's provider
// accounts. A single account's failure lands in Failed and does not abort
// the batch. After the batch, previously linked accounts absent from the
// incoming set are marked closed with sync disabled; their transactions
// stay queryable.
func (r *reconciler) Reconcile(ctx context.Context, tenantID, connectionID, providerID string, incoming []dto.ProviderAccount) (dto.ReconcileResult, error) {
	log := logger.FromContext(ctx)
	result := dto.ReconcileResult{}

	seen := make(map[string]bool, len(incoming))
	for _, pa := range incoming {
		seen[pa.ExternalID] = true

		created, err := r.reconcileOne(ctx, tenantID, connectionID, providerID, pa)
		if err != nil {
			log.Warn("account reconciliation failed",
				"connection_id", connectionID,
				"external_id", pa.ExternalID,
				"error", err)
			result.Failed = append(result.Failed, dto.AccountFailure{
				ExternalID: pa.ExternalID,
				Reason:     err.Error(),
			})
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	closed, err := r.closeMissing(ctx, tenantID, connectionID, seen)
	if err != nil {
		return result, err
	}
	result.Closed = closed

	log.Info("accounts reconciled",
		"connection_id", connectionID,
		"created", result.Created,
		"updated", result.Updated,
		"closed", result.Closed,
		"failed", len(result.Failed))
	return result, nil
}

func (r *reconciler) reconcileOne(ctx context.Context, tenantID, connectionID, providerID string, pa dto.ProviderAccount) (created bool, err error) {
	match, err := r.match(ctx, tenantID, providerID, pa)
	if err != nil {
		return false, err
	}

	now := r.clockNow()
	if match == nil {
		acc := &models.Account{
			AccountID:     r.newID(),
			ConnectionID:  connectionID,
			ProviderID:    providerID,
			ExternalID:    pa.ExternalID,
			DisplayName:   pa.Name,
			AccountNumber: pa.AccountNumber,
			IBAN:          NormalizeIBAN(pa.IBAN),
			BIC:           pa.BIC,
			BankName:      pa.BankName,
			AccountType:   pa.AccountType,
			Currency:      pa.Currency,
			Balance:       pa.Balance,
			Status:        models.AccountActive,
			SyncEnabled:   true,
			LastSyncedAt:  &now,
			Raw:           pa.Raw,
		}
		return true, r.accounts.Create(ctx, tenantID, acc)
	}

	// Matched: refresh provider-sourced fields and re-link, but never
	// touch a display name the user curated.
	match.ConnectionID = connectionID
	match.ProviderID = providerID
	match.ExternalID = pa.ExternalID
	match.Balance = pa.Balance
	match.Currency = pa.Currency
	match.Status = models.AccountActive
	match.SyncEnabled = true
	match.LastSyncedAt = &now
	match.Raw = pa.Raw
	if !match.NameCurated && pa.Name != "" {
		match.DisplayName = pa.Name
	}
	if match.IBAN == "" {
		match.IBAN = NormalizeIBAN(pa.IBAN)
	}
	if match.BIC == "" {
		match.BIC = pa.BIC
	}
	if match.BankName == "" {
		match.BankName = pa.BankName
	}
	if match.AccountNumber == "" {
		match.AccountNumber = pa.AccountNumber
	}
	if pa.AccountType != "" {
		match.AccountType = pa.AccountType
	}
	return false, r.accounts.Update(ctx, tenantID, match)
}

// match applies the tiered strategy in strict priority order, first match
// wins: IBAN, then (provider, external id), then (bank name, account
// number). More than one hit at a tier is a conflict, not a guess.
func (r *reconciler) match(ctx context.Context, tenantID, providerID string, pa dto.ProviderAccount) (*models.Account, error) {
	if iban := NormalizeIBAN(pa.IBAN); iban != "" {
		matches, err := r.accounts.FindByIBAN(ctx, tenantID, iban)
		if err != nil {
			return nil, err
		}
		if acc, err := single(matches, "iban "+iban); acc != nil || err != nil {
			return acc, err
		}
	}

	if pa.ExternalID != "" {
		matches, err := r.accounts.FindByExternalID(ctx, tenantID, providerID, pa.ExternalID)
		if err != nil {
			return nil, err
		}
		if acc, err := single(matches, "external id "+pa.ExternalID); acc != nil || err != nil {
			return acc, err
		}
	}

	if pa.BankName != "" && pa.AccountNumber != "" {
		matches, err := r.accounts.FindByBankDetails(ctx, tenantID, pa.BankName, pa.AccountNumber)
		if err != nil {
			return nil, err
		}
		if acc, err := single(matches, fmt.Sprintf("bank %s number %s", pa.BankName, pa.AccountNumber)); acc != nil || err != nil {
			return acc, err
		}
	}

	return nil, nil
}

func single(matches []*models.Account, key string) (*models.Account, error) {
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		return nil, errs.NewReconciliationConflictError(
			fmt.Sprintf("%d canonical accounts match %s", len(matches), key))
	}
}

func (r *reconciler) closeMissing(ctx context.Context, tenantID, connectionID string, seen map[string]bool) (int, error) {
	linked, err := r.accounts.ListByConnection(ctx, tenantID, connectionID)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, acc := range linked {
		if seen[acc.ExternalID] || acc.Status == models.AccountClosed {
			continue
		}
		acc.Status = models.AccountClosed
		acc.SyncEnabled = false
		if err := r.accounts.Update(ctx, tenantID, acc); err != nil {
			return closed, err
		}
		closed++
	}
	return closed, nil
}

// NormalizeIBAN uppercases and strips all whitespace so matching is
// insensitive to formatting.
func NormalizeIBAN(iban string) string {
	return strings.ToUpper(strings.Join(strings.Fields(iban), ""))
}
