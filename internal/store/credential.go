package store

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/centraflow/banksync-backend/internal/crypto"
	"github.com/centraflow/banksync-backend/internal/errs"
	"github.com/centraflow/banksync-backend/internal/models"
)

// credentialStore persists OAuth token material. Access and refresh tokens
// are run through the token cipher before writes and after reads, so
// Firestore never sees plaintext tokens.
type credentialStore struct {
	client *firestore.Client
	cipher crypto.TokenCipher
}

func NewCredentialStore(client *firestore.Client, cipher crypto.TokenCipher) *credentialStore {
	return &credentialStore{client: client, cipher: cipher}
}

func (s *credentialStore) collection(tenantID string) *firestore.CollectionRef {
	return s.client.Collection("tenants").Doc(tenantID).Collection("credentials")
}

func (s *credentialStore) Create(ctx context.Context, tenantID string, cred *models.Credential) error {
	now := time.Now()
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now

	sealed, err := s.seal(ctx, cred)
	if err != nil {
		return err
	}
	_, err = s.collection(tenantID).Doc(cred.CredentialID).Set(ctx, sealed)
	return err
}

func (s *credentialStore) Update(ctx context.Context, tenantID string, cred *models.Credential) error {
	cred.UpdatedAt = time.Now()
	sealed, err := s.seal(ctx, cred)
	if err != nil {
		return err
	}
	_, err = s.collection(tenantID).Doc(cred.CredentialID).Set(ctx, sealed)
	return err
}

// GetActive returns the authoritative credential for a connection: the
// most-recently-updated active record. Historical revoked records are
// tolerated and ignored.
func (s *credentialStore) GetActive(ctx context.Context, tenantID, connectionID string) (*models.Credential, error) {
	docs, err := s.collection(tenantID).
		Where("connectionId", "==", connectionID).
		Where("status", "==", string(models.CredentialActive)).
		OrderBy("updatedAt", firestore.Desc).
		Limit(1).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, errs.NewNotFoundError("no active credential for connection: " + connectionID)
	}

	var c models.Credential
	if err := docs[0].DataTo(&c); err != nil {
		return nil, err
	}
	return s.open(ctx, &c)
}

// Supersede revokes every active credential for a connection. Called before
// storing the credential from a re-authorization; old records stay around
// as history.
func (s *credentialStore) Supersede(ctx context.Context, tenantID, connectionID string) error {
	docs, err := s.collection(tenantID).
		Where("connectionId", "==", connectionID).
		Where("status", "==", string(models.CredentialActive)).
		Documents(ctx).GetAll()
	if err != nil {
		return err
	}
	for _, d := range docs {
		if _, err := d.Ref.Update(ctx, []firestore.Update{
			{Path: "status", Value: string(models.CredentialRevoked)},
			{Path: "updatedAt", Value: time.Now()},
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *credentialStore) seal(ctx context.Context, cred *models.Credential) (*models.Credential, error) {
	sealed := *cred
	var err error
	if sealed.AccessToken != "" {
		sealed.AccessToken, err = s.cipher.Encrypt(ctx, sealed.AccessToken)
		if err != nil {
			return nil, errs.NewDatabaseError("credential seal", err.Error())
		}
	}
	if sealed.RefreshToken != "" {
		sealed.RefreshToken, err = s.cipher.Encrypt(ctx, sealed.RefreshToken)
		if err != nil {
			return nil, errs.NewDatabaseError("credential seal", err.Error())
		}
	}
	return &sealed, nil
}

func (s *credentialStore) open(ctx context.Context, cred *models.Credential) (*models.Credential, error) {
	var err error
	if cred.AccessToken != "" {
		cred.AccessToken, err = s.cipher.Decrypt(ctx, cred.AccessToken)
		if err != nil {
			return nil, errs.NewDatabaseError("credential open", err.Error())
		}
	}
	if cred.RefreshToken != "" {
		cred.RefreshToken, err = s.cipher.Decrypt(ctx, cred.RefreshToken)
		if err != nil {
			return nil, errs.NewDatabaseError("credential open", err.Error())
		}
	}
	return cred, nil
}
