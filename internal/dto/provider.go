package dto

import (
	"time"
)

// ProviderAccount is the normalized shape every adapter emits from its
// provider's account payload. Raw keeps the original response for audit.
type ProviderAccount struct {
	ExternalID    string
	Name          string
	AccountNumber string
	IBAN          string
	BIC           string
	BankName      string
	AccountType   string
	Currency      string
	Balance       float64
	Raw           string
}

// ProviderTransaction is the normalized transaction shape. Amount follows
// the canonical sign convention: inflow positive, outflow negative,
// whatever the provider's raw convention was.
type ProviderTransaction struct {
	ExternalID   string
	Date         string // YYYY-MM-DD
	Amount       float64
	Currency     string
	Description  string
	Counterparty string
	Category     string
	Pending      bool
	Raw          string
}

// FetchOptions parameterizes one page fetch. Cursor-family adapters only
// look at Marker; page-token-family adapters use the date range plus
// Marker as the page token.
type FetchOptions struct {
	StartDate time.Time
	EndDate   time.Time
	Limit     int
	Marker    string
}

// TransactionPage is one page of a provider's transaction feed. Marker is
// whatever continuation token the provider yielded (cursor or page token);
// the orchestrator persists it so continuation survives process restarts.
// An empty Marker with HasMore=false means the feed is drained.
type TransactionPage struct {
	Transactions []ProviderTransaction
	Marker       string
	HasMore      bool
}
