// Package provider defines the adapter contract every banking aggregator
// implementation satisfies, plus the registry the orchestrator looks
// adapters up in. Adapters own all provider-specific wire detail: auth
// flows, pagination style, amount-sign and balance normalization.
package provider

import (
	"context"

	"github.com/centraflow/banksync-backend/internal/dto"
	"github.com/centraflow/banksync-backend/internal/errs"
	"github.com/centraflow/banksync-backend/internal/models"
)

// Adapter normalizes one aggregator's API into the common provider model.
//
// Implementations must emit the canonical amount convention (inflow
// positive) and surface failures through the errs taxonomy:
// transport/5xx as ProviderUnavailableError, undecodable payloads as
// ProviderDataError, bad auth codes as AuthExchangeError, and a missing
// refresh path as TokenRefreshUnavailableError.
type Adapter interface {
	// ID is the stable provider identifier connections reference.
	ID() string

	// AuthorizationURL builds the user-facing consent URL. state round-trips
	// through the provider untouched; market hints at the user's country for
	// providers that localize institution lists. Some providers mint the URL
	// server-side, hence the context and error.
	AuthorizationURL(ctx context.Context, state, market string) (string, error)

	// ExchangeCode trades an OAuth authorization code for token material.
	ExchangeCode(ctx context.Context, code string) (*models.Credential, error)

	// Refresh obtains a fresh access token. Providers without a refresh
	// path return TokenRefreshUnavailableError; the orchestrator treats
	// that as terminal for the connection.
	Refresh(ctx context.Context, cred *models.Credential) (*models.Credential, error)

	// FetchAccounts lists the provider's current accounts for the consent.
	FetchAccounts(ctx context.Context, cred *models.Credential) ([]dto.ProviderAccount, error)

	// FetchTransactions returns one page of transactions for one provider
	// account. The returned page's Marker must be persisted by the caller
	// so continuation survives restarts.
	FetchTransactions(ctx context.Context, cred *models.Credential, externalAccountID string, opts dto.FetchOptions) (dto.TransactionPage, error)
}

// Registry is the explicit adapter table, keyed by provider identifier and
// built once at startup.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.ID()] = a
	}
	return r
}

func (r *Registry) Get(providerID string) (Adapter, error) {
	a, ok := r.adapters[providerID]
	if !ok {
		return nil, errs.NewNotFoundError("unknown provider: " + providerID)
	}
	return a, nil
}

// IDs returns the registered provider identifiers, for discovery endpoints.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	return ids
}
