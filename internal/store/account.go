package store

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/centraflow/banksync-backend/internal/errs"
	"github.com/centraflow/banksync-backend/internal/models"
)

type accountStore struct {
	client *firestore.Client
}

func NewAccountStore(client *firestore.Client) *accountStore {
	return &accountStore{client: client}
}

func (s *accountStore) collection(tenantID string) *firestore.CollectionRef {
	return s.client.Collection("tenants").Doc(tenantID).Collection("accounts")
}

func (s *accountStore) Create(ctx context.Context, tenantID string, acc *models.Account) error {
	now := time.Now()
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = now
	}
	acc.UpdatedAt = now
	_, err := s.collection(tenantID).Doc(acc.AccountID).Set(ctx, acc)
	return err
}

func (s *accountStore) Update(ctx context.Context, tenantID string, acc *models.Account) error {
	acc.UpdatedAt = time.Now()
	_, err := s.collection(tenantID).Doc(acc.AccountID).Set(ctx, acc)
	return err
}

func (s *accountStore) Get(ctx context.Context, tenantID, accountID string) (*models.Account, error) {
	doc, err := s.collection(tenantID).Doc(accountID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errs.NewNotFoundError("account not found: " + accountID)
		}
		return nil, err
	}
	var a models.Account
	if err := doc.DataTo(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *accountStore) List(ctx context.Context, tenantID string) ([]*models.Account, error) {
	return s.query(ctx, s.collection(tenantID).Query)
}

func (s *accountStore) ListByConnection(ctx context.Context, tenantID, connectionID string) ([]*models.Account, error) {
	return s.query(ctx, s.collection(tenantID).Where("connectionId", "==", connectionID))
}

// The Find methods return every match so the reconciler can detect
// ambiguity itself; matching is fuzzy and a uniqueness constraint alone
// cannot express it.

func (s *accountStore) FindByIBAN(ctx context.Context, tenantID, iban string) ([]*models.Account, error) {
	return s.query(ctx, s.collection(tenantID).Where("iban", "==", iban))
}

func (s *accountStore) FindByExternalID(ctx context.Context, tenantID, providerID, externalID string) ([]*models.Account, error) {
	return s.query(ctx, s.collection(tenantID).
		Where("providerId", "==", providerID).
		Where("externalId", "==", externalID))
}

func (s *accountStore) FindByBankDetails(ctx context.Context, tenantID, bankName, accountNumber string) ([]*models.Account, error) {
	return s.query(ctx, s.collection(tenantID).
		Where("bankName", "==", bankName).
		Where("accountNumber", "==", accountNumber))
}

func (s *accountStore) query(ctx context.Context, q firestore.Query) ([]*models.Account, error) {
	docs, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	accounts := make([]*models.Account, 0, len(docs))
	for _, d := range docs {
		var a models.Account
		if err := d.DataTo(&a); err != nil {
			return nil, err
		}
		accounts = append(accounts, &a)
	}
	return accounts, nil
}
