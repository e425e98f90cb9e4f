package store

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/centraflow/banksync-backend/internal/models"
)

type transactionStore struct {
	client *firestore.Client
}

func NewTransactionStore(client *firestore.Client) *transactionStore {
	return &transactionStore{client: client}
}

func (s *transactionStore) collection(tenantID string) *firestore.CollectionRef {
	return s.client.Collection("tenants").Doc(tenantID).Collection("transactions")
}

// Upsert writes one transaction keyed by its TransactionID (which encodes
// the connection + external-id idempotence key for synced rows). Created
// reports whether the row is new; a re-delivered transaction only has its
// mutable fields merged, so importing the same batch twice cannot
// duplicate.
func (s *transactionStore) Upsert(ctx context.Context, tenantID string, tx *models.Transaction) (created bool, err error) {
	ref := s.collection(tenantID).Doc(tx.TransactionID)

	err = s.client.RunTransaction(ctx, func(ctx context.Context, ft *firestore.Transaction) error {
		now := time.Now()
		_, err := ft.Get(ref)
		if status.Code(err) == codes.NotFound {
			created = true
			tx.CreatedAt = now
			tx.UpdatedAt = now
			return ft.Set(ref, tx)
		}
		if err != nil {
			return err
		}

		// Existing row: merge the fields a provider may legitimately revise
		// (amount corrections, pending -> booked, description cleanup).
		created = false
		return ft.Update(ref, []firestore.Update{
			{Path: "date", Value: tx.Date},
			{Path: "amount", Value: tx.Amount},
			{Path: "currency", Value: tx.Currency},
			{Path: "description", Value: tx.Description},
			{Path: "counterparty", Value: tx.Counterparty},
			{Path: "category", Value: tx.Category},
			{Path: "pending", Value: tx.Pending},
			{Path: "raw", Value: tx.Raw},
			{Path: "updatedAt", Value: now},
		})
	})
	return created, err
}

// List returns an account's transactions within an inclusive date range,
// oldest first. Empty bounds mean unbounded.
func (s *transactionStore) List(ctx context.Context, tenantID, accountID, from, to string) ([]*models.Transaction, error) {
	q := s.collection(tenantID).Where("accountId", "==", accountID)
	if from != "" {
		q = q.Where("date", ">=", from)
	}
	if to != "" {
		q = q.Where("date", "<=", to)
	}
	q = q.OrderBy("date", firestore.Asc)

	docs, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	txs := make([]*models.Transaction, 0, len(docs))
	for _, d := range docs {
		var t models.Transaction
		if err := d.DataTo(&t); err != nil {
			return nil, err
		}
		txs = append(txs, &t)
	}
	return txs, nil
}
