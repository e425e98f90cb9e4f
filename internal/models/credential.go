package models

import (
	"time"
)

type CredentialStatus string

const (
	CredentialActive  CredentialStatus = "active"
	CredentialExpired CredentialStatus = "expired"
	CredentialRevoked CredentialStatus = "revoked"
)

// expirySkew treats a token expiring within the next minute as already
// expired, so a fetch never starts with a token that dies mid-flight.
const expirySkew = time.Minute

// Credential holds OAuth token material for one connection. Token fields
// are KMS-encrypted by the store before they touch Firestore; in memory
// they are plaintext. A reconnection supersedes (revokes) the old record
// rather than deleting it.
type Credential struct {
	CredentialID string           `firestore:"credentialId" json:"credentialId"`
	ConnectionID string           `firestore:"connectionId" json:"connectionId"`
	AccessToken  string           `firestore:"accessToken" json:"-"`
	RefreshToken string           `firestore:"refreshToken" json:"-"`
	TokenType    string           `firestore:"tokenType" json:"tokenType"`
	ExpiresAt    *time.Time       `firestore:"expiresAt" json:"expiresAt,omitempty"`
	Status       CredentialStatus `firestore:"status" json:"status"`
	CreatedAt    time.Time        `firestore:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time        `firestore:"updatedAt" json:"updatedAt"`
}

// Expired reports whether the access token is unusable at the given time.
// A nil ExpiresAt means the provider issues non-expiring tokens.
func (c *Credential) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !now.Add(expirySkew).Before(*c.ExpiresAt)
}

// Refreshable reports whether a refresh path exists at all.
func (c *Credential) Refreshable() bool {
	return c.RefreshToken != ""
}
