package models

import (
	"time"
)

type AccountStatus string

const (
	AccountActive   AccountStatus = "active"
	AccountInactive AccountStatus = "inactive"
	AccountClosed   AccountStatus = "closed"
)

// Well-known account types. Backfill window length depends on these; an
// unknown type falls back to the default window.
const (
	AccountTypeChecking   = "checking"
	AccountTypeSavings    = "savings"
	AccountTypeCredit     = "credit"
	AccountTypeInvestment = "investment"
)

// Account is the canonical, provider-agnostic bank account for a tenant.
// ConnectionID is empty for manually entered accounts. Accounts are marked
// closed when the provider stops reporting them, never deleted, so their
// transaction history stays queryable.
type Account struct {
	AccountID     string        `firestore:"accountId" json:"accountId"`
	ConnectionID  string        `firestore:"connectionId" json:"connectionId,omitempty"`
	ProviderID    string        `firestore:"providerId" json:"providerId,omitempty"`
	ExternalID    string        `firestore:"externalId" json:"externalId,omitempty"`
	DisplayName   string        `firestore:"displayName" json:"displayName"`
	NameCurated   bool          `firestore:"nameCurated" json:"-"` // user renamed; sync must not overwrite
	AccountNumber string        `firestore:"accountNumber" json:"accountNumber,omitempty"`
	IBAN          string        `firestore:"iban" json:"iban,omitempty"`
	BIC           string        `firestore:"bic" json:"bic,omitempty"`
	BankName      string        `firestore:"bankName" json:"bankName,omitempty"`
	AccountType   string        `firestore:"accountType" json:"accountType"`
	Currency      string        `firestore:"currency" json:"currency"`
	Balance       float64       `firestore:"balance" json:"balance"`
	Status        AccountStatus `firestore:"status" json:"status"`
	SyncEnabled   bool          `firestore:"syncEnabled" json:"syncEnabled"`
	LastSyncedAt  *time.Time    `firestore:"lastSyncedAt" json:"lastSyncedAt,omitempty"`
	Raw           string        `firestore:"raw" json:"-"` // opaque provider payload, audit only
	CreatedAt     time.Time     `firestore:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time     `firestore:"updatedAt" json:"updatedAt"`
}
