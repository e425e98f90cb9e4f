package models

import (
	"time"
)

// Transaction is a canonical, deduplicated financial transaction. Amount is
// signed with inflow positive; every provider adapter normalizes to this
// convention. The Firestore doc ID is TransactionKey(connectionID, externalID)
// for synced rows, which makes re-delivery an upsert rather than a duplicate.
type Transaction struct {
	TransactionID string    `firestore:"transactionId" json:"transactionId"`
	AccountID     string    `firestore:"accountId" json:"accountId"`
	ConnectionID  string    `firestore:"connectionId" json:"connectionId,omitempty"`
	ExternalID    string    `firestore:"externalId" json:"externalId,omitempty"`
	Date          string    `firestore:"date" json:"date"` // YYYY-MM-DD
	Amount        float64   `firestore:"amount" json:"amount"`
	Currency      string    `firestore:"currency" json:"currency"`
	Description   string    `firestore:"description" json:"description"`
	Counterparty  string    `firestore:"counterparty" json:"counterparty,omitempty"`
	Category      string    `firestore:"category" json:"category,omitempty"`
	Pending       bool      `firestore:"pending" json:"pending"`
	Raw           string    `firestore:"raw" json:"-"` // opaque provider payload, audit only
	CreatedAt     time.Time `firestore:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time `firestore:"updatedAt" json:"updatedAt"`
}

// TransactionKey builds the idempotence key for a synced transaction.
// Tenant scoping comes from the collection path, so connection + external
// id uniquely identify the row.
func TransactionKey(connectionID, externalID string) string {
	return connectionID + "_" + externalID
}
