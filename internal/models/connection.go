package models

import (
	"time"
)

type ConnectionStatus string

const (
	ConnectionPending  ConnectionStatus = "pending"
	ConnectionActive   ConnectionStatus = "active"
	ConnectionError    ConnectionStatus = "error"
	ConnectionDisabled ConnectionStatus = "disabled"
)

// Connection is one authorized link to a banking provider for one tenant.
// It is never hard-deleted while transactions reference it; DisableConnection
// soft-disables instead.
type Connection struct {
	ConnectionID         string           `firestore:"connectionId" json:"connectionId"`
	ProviderID           string           `firestore:"providerId" json:"providerId"`
	DisplayName          string           `firestore:"displayName" json:"displayName"`
	Status               ConnectionStatus `firestore:"status" json:"status"`
	HealthScore          float64          `firestore:"healthScore" json:"healthScore"`
	ConsecutiveFailures  int              `firestore:"consecutiveFailures" json:"consecutiveFailures"`
	LastSyncedAt         *time.Time       `firestore:"lastSyncedAt" json:"lastSyncedAt,omitempty"`
	LastSuccessfulSyncAt *time.Time       `firestore:"lastSuccessfulSyncAt" json:"lastSuccessfulSyncAt,omitempty"`
	NextSyncAt           *time.Time       `firestore:"nextSyncAt" json:"nextSyncAt,omitempty"`
	LastError            string           `firestore:"lastError" json:"lastError,omitempty"`
	SyncLeaseUntil       *time.Time       `firestore:"syncLeaseUntil" json:"-"`
	CreatedAt            time.Time        `firestore:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time        `firestore:"updatedAt" json:"updatedAt"`
}

// Syncable reports whether the orchestrator should consider this connection
// at all. Disabled connections are skipped outright; error connections stay
// eligible because recovery on a later sync is always possible.
func (c *Connection) Syncable() bool {
	return c.Status != ConnectionDisabled
}
