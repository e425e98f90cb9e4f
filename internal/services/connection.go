package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/centraflow/banksync-backend/internal/dto"
	"github.com/centraflow/banksync-backend/internal/errs"
	"github.com/centraflow/banksync-backend/internal/models"
	"github.com/centraflow/banksync-backend/internal/provider"
	"github.com/centraflow/banksync-backend/pkg/logger"
)

type connectionCSStore interface {
	Create(ctx context.Context, tenantID string, conn *models.Connection) error
	Get(ctx context.Context, tenantID, connectionID string) (*models.Connection, error)
	Update(ctx context.Context, tenantID string, conn *models.Connection) error
	List(ctx context.Context, tenantID string) ([]*models.Connection, error)
}

type credentialCSStore interface {
	Create(ctx context.Context, tenantID string, cred *models.Credential) error
	Supersede(ctx context.Context, tenantID, connectionID string) error
}

type csAdapterRegistry interface {
	Get(providerID string) (provider.Adapter, error)
	IDs() []string
}

// connectionService owns the connection lifecycle around the sync core:
// creation with a consent URL, the OAuth callback handoff, soft-disable,
// and listing. Activation itself happens on the first successful sync.
type connectionService struct {
	registry    csAdapterRegistry
	connections connectionCSStore
	credentials credentialCSStore
	clockNow    func() time.Time
}

func NewConnectionService(registry csAdapterRegistry, connections connectionCSStore, credentials credentialCSStore) *connectionService {
	return &connectionService{
		registry:    registry,
		connections: connections,
		credentials: credentials,
		clockNow:    time.Now,
	}
}

// Providers lists the registered provider identifiers.
func (s *connectionService) Providers() []string {
	return s.registry.IDs()
}

// Connect creates a pending connection and returns the provider consent
// URL. The connection id doubles as the OAuth state parameter, which is
// how the callback finds its way back.
func (s *connectionService) Connect(ctx context.Context, tenantID, providerID, displayName, market string) (dto.AuthorizationRequest, error) {
	adapter, err := s.registry.Get(providerID)
	if err != nil {
		return dto.AuthorizationRequest{}, err
	}

	conn := &models.Connection{
		ConnectionID: uuid.NewString(),
		ProviderID:   providerID,
		DisplayName:  displayName,
		Status:       models.ConnectionPending,
		HealthScore:  1.0,
	}

	authURL, err := adapter.AuthorizationURL(ctx, conn.ConnectionID, market)
	if err != nil {
		return dto.AuthorizationRequest{}, err
	}

	if err := s.connections.Create(ctx, tenantID, conn); err != nil {
		return dto.AuthorizationRequest{}, err
	}

	log := logger.FromContext(ctx)
	log.Info("connection created", "connection_id", conn.ConnectionID, "provider_id", providerID)

	return dto.AuthorizationRequest{
		ConnectionID:     conn.ConnectionID,
		AuthorizationURL: authURL,
	}, nil
}

// HandleCallback is the OAuth redirect handoff: exchange the code, persist
// the credential (superseding any prior one, so re-authorization of an
// errored connection just works), and leave the connection pending until
// its first successful sync.
func (s *connectionService) HandleCallback(ctx context.Context, tenantID, state, code string) (*models.Connection, error) {
	conn, err := s.connections.Get(ctx, tenantID, state)
	if err != nil {
		return nil, err
	}
	if conn.Status == models.ConnectionDisabled {
		return nil, errs.NewValidationError("connection is disabled: " + conn.ConnectionID)
	}

	adapter, err := s.registry.Get(conn.ProviderID)
	if err != nil {
		return nil, err
	}

	cred, err := adapter.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}
	cred.CredentialID = uuid.NewString()
	cred.ConnectionID = conn.ConnectionID

	if err := s.credentials.Supersede(ctx, tenantID, conn.ConnectionID); err != nil {
		return nil, err
	}
	if err := s.credentials.Create(ctx, tenantID, cred); err != nil {
		return nil, err
	}

	// A reconnection of an errored connection gets a clean slate; the
	// next sync decides whether it goes active.
	if conn.Status == models.ConnectionError {
		conn.Status = models.ConnectionPending
		conn.LastError = ""
		conn.ConsecutiveFailures = 0
	}
	if err := s.connections.Update(ctx, tenantID, conn); err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx)
	log.Info("credential stored", "connection_id", conn.ConnectionID, "provider_id", conn.ProviderID)
	return conn, nil
}

func (s *connectionService) ListConnections(ctx context.Context, tenantID string) ([]*models.Connection, error) {
	return s.connections.List(ctx, tenantID)
}

// Disable soft-disables a connection. History and transactions stay; only
// syncing stops. This is the one transition recovery does not undo.
func (s *connectionService) Disable(ctx context.Context, tenantID, connectionID string) error {
	conn, err := s.connections.Get(ctx, tenantID, connectionID)
	if err != nil {
		return err
	}
	conn.Status = models.ConnectionDisabled
	if err := s.connections.Update(ctx, tenantID, conn); err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	log.Info("connection disabled", "connection_id", connectionID)
	return nil
}
