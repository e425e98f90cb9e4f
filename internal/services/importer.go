package services

import (
	"context"
	"sort"
	"time"

	"github.com/centraflow/banksync-backend/internal/dto"
	"github.com/centraflow/banksync-backend/internal/models"
	"github.com/centraflow/banksync-backend/pkg/logger"
)

// importTransactionStore is the minimal store surface for imports. Upsert
// must be idempotent on the transaction's key and report whether the row
// was new.
type importTransactionStore interface {
	Upsert(ctx context.Context, tenantID string, tx *models.Transaction) (created bool, err error)
}

// importer writes normalized provider transactions into the canonical
// store. The external transaction id is the idempotence key, so the same
// batch delivered twice (the adapters only promise at-least-once) yields
// the same canonical rows.
type importer struct {
	txs      importTransactionStore
	clockNow func() time.Time
}

func NewImporter(txs importTransactionStore) *importer {
	return &importer{
		txs:      txs,
		clockNow: time.Now,
	}
}

// Import upserts one account's batch in a stable order (date, then external
// id) so balance-derived reporting downstream is reproducible. A single
// transaction's failure is recorded and the rest of the batch continues.
func (i *importer) Import(ctx context.Context, tenantID, connectionID, accountID string, batch []dto.ProviderTransaction) dto.ImportResult {
	log := logger.FromContext(ctx)
	result := dto.ImportResult{}

	ordered := make([]dto.ProviderTransaction, len(batch))
	copy(ordered, batch)
	sort.SliceStable(ordered, func(a, b int) bool {
		if ordered[a].Date != ordered[b].Date {
			return ordered[a].Date < ordered[b].Date
		}
		return ordered[a].ExternalID < ordered[b].ExternalID
	})

	for _, pt := range ordered {
		tx := &models.Transaction{
			TransactionID: models.TransactionKey(connectionID, pt.ExternalID),
			AccountID:     accountID,
			ConnectionID:  connectionID,
			ExternalID:    pt.ExternalID,
			Date:          pt.Date,
			Amount:        pt.Amount,
			Currency:      pt.Currency,
			Description:   pt.Description,
			Counterparty:  pt.Counterparty,
			Category:      pt.Category,
			Pending:       pt.Pending,
			Raw:           pt.Raw,
		}

		created, err := i.txs.Upsert(ctx, tenantID, tx)
		switch {
		case err != nil:
			log.Warn("transaction import failed",
				"connection_id", connectionID,
				"external_id", pt.ExternalID,
				"error", err)
			result.Failed = append(result.Failed, dto.TransactionFailure{
				ExternalID: pt.ExternalID,
				Reason:     err.Error(),
			})
		case created:
			result.Imported++
		default:
			result.Skipped++
		}
	}

	return result
}
