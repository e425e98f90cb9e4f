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

type connectionStore struct {
	client *firestore.Client
}

func NewConnectionStore(client *firestore.Client) *connectionStore {
	return &connectionStore{client: client}
}

func (s *connectionStore) collection(tenantID string) *firestore.CollectionRef {
	return s.client.Collection("tenants").Doc(tenantID).Collection("connections")
}

func (s *connectionStore) Create(ctx context.Context, tenantID string, conn *models.Connection) error {
	now := time.Now()
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = now
	}
	conn.UpdatedAt = now
	_, err := s.collection(tenantID).Doc(conn.ConnectionID).Set(ctx, conn)
	return err
}

func (s *connectionStore) Get(ctx context.Context, tenantID, connectionID string) (*models.Connection, error) {
	doc, err := s.collection(tenantID).Doc(connectionID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errs.NewNotFoundError("connection not found: " + connectionID)
		}
		return nil, err
	}
	var c models.Connection
	if err := doc.DataTo(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *connectionStore) Update(ctx context.Context, tenantID string, conn *models.Connection) error {
	conn.UpdatedAt = time.Now()
	_, err := s.collection(tenantID).Doc(conn.ConnectionID).Set(ctx, conn)
	return err
}

func (s *connectionStore) List(ctx context.Context, tenantID string) ([]*models.Connection, error) {
	docs, err := s.collection(tenantID).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	conns := make([]*models.Connection, 0, len(docs))
	for _, d := range docs {
		var c models.Connection
		if err := d.DataTo(&c); err != nil {
			return nil, err
		}
		conns = append(conns, &c)
	}
	return conns, nil
}

// AcquireSyncLock flips the connection's sync lease inside a Firestore
// transaction, enforcing at most one in-flight sync per connection. A lease
// held by a crashed worker expires on its own; the caller's lease duration
// bounds how long a wedge can last. Returns false when another sync holds
// the lease.
func (s *connectionStore) AcquireSyncLock(ctx context.Context, tenantID, connectionID string, lease time.Duration) (bool, error) {
	ref := s.collection(tenantID).Doc(connectionID)
	acquired := false

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var c models.Connection
		if err := doc.DataTo(&c); err != nil {
			return err
		}

		now := time.Now()
		if c.SyncLeaseUntil != nil && c.SyncLeaseUntil.After(now) {
			acquired = false
			return nil
		}

		acquired = true
		until := now.Add(lease)
		return tx.Update(ref, []firestore.Update{
			{Path: "syncLeaseUntil", Value: until},
			{Path: "updatedAt", Value: now},
		})
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, errs.NewNotFoundError("connection not found: " + connectionID)
		}
		return false, err
	}
	return acquired, nil
}

func (s *connectionStore) ReleaseSyncLock(ctx context.Context, tenantID, connectionID string) error {
	_, err := s.collection(tenantID).Doc(connectionID).Update(ctx, []firestore.Update{
		{Path: "syncLeaseUntil", Value: nil},
		{Path: "updatedAt", Value: time.Now()},
	})
	return err
}
