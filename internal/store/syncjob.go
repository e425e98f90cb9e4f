package store

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/centraflow/banksync-backend/internal/models"
)

type syncJobStore struct {
	client *firestore.Client
}

func NewSyncJobStore(client *firestore.Client) *syncJobStore {
	return &syncJobStore{client: client}
}

func (s *syncJobStore) collection(tenantID string) *firestore.CollectionRef {
	return s.client.Collection("tenants").Doc(tenantID).Collection("sync_jobs")
}

// Create persists a finalized job. Jobs are written once and never updated.
func (s *syncJobStore) Create(ctx context.Context, tenantID string, job *models.SyncJob) error {
	_, err := s.collection(tenantID).Doc(job.JobID).Set(ctx, job)
	return err
}

// ListRecent returns a connection's jobs started at or after since, newest
// first. This is the health tracker's rolling window.
func (s *syncJobStore) ListRecent(ctx context.Context, tenantID, connectionID string, since time.Time) ([]*models.SyncJob, error) {
	docs, err := s.collection(tenantID).
		Where("connectionId", "==", connectionID).
		Where("startedAt", ">=", since).
		OrderBy("startedAt", firestore.Desc).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	jobs := make([]*models.SyncJob, 0, len(docs))
	for _, d := range docs {
		var j models.SyncJob
		if err := d.DataTo(&j); err != nil {
			return nil, err
		}
		jobs = append(jobs, &j)
	}
	return jobs, nil
}
