package store

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// markerStore keeps each connection's pagination markers (Plaid cursors,
// Tink page tokens) in one doc per connection, one field per provider
// account. Persisting every yielded marker is what makes duplicate-free
// continuation across process restarts possible.
type markerStore struct {
	client *firestore.Client
}

func NewMarkerStore(client *firestore.Client) *markerStore {
	return &markerStore{client: client}
}

func (s *markerStore) doc(tenantID, connectionID string) *firestore.DocumentRef {
	return s.client.Collection("tenants").Doc(tenantID).Collection("sync_markers").Doc(connectionID)
}

func (s *markerStore) Get(ctx context.Context, tenantID, connectionID, externalAccountID string) (string, error) {
	snap, err := s.doc(tenantID, connectionID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", nil
		}
		return "", err
	}
	markers, ok := snap.Data()["markers"].(map[string]interface{})
	if !ok {
		return "", nil
	}
	marker, _ := markers[externalAccountID].(string)
	return marker, nil
}

func (s *markerStore) Set(ctx context.Context, tenantID, connectionID, externalAccountID, marker string) error {
	_, err := s.doc(tenantID, connectionID).Set(ctx, map[string]interface{}{
		"markers":   map[string]interface{}{externalAccountID: marker},
		"updatedAt": time.Now(),
	}, firestore.MergeAll)
	return err
}

// Clear removes one account's marker, typically after a page-token feed
// has been fully drained so the next sync starts from its date window.
func (s *markerStore) Clear(ctx context.Context, tenantID, connectionID, externalAccountID string) error {
	_, err := s.doc(tenantID, connectionID).Update(ctx, []firestore.Update{
		{Path: "markers." + externalAccountID, Value: firestore.Delete},
		{Path: "updatedAt", Value: time.Now()},
	})
	if status.Code(err) == codes.NotFound {
		return nil
	}
	return err
}
