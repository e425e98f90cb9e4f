package dto

import (
	"time"
)

type PlanReason string

const (
	ReasonInitial     PlanReason = "initial"
	ReasonForced      PlanReason = "forced"
	ReasonThrottled   PlanReason = "throttled"
	ReasonIncremental PlanReason = "incremental"
	ReasonCatchUp     PlanReason = "catch-up"
	ReasonBackfill    PlanReason = "backfill" // gap too large, re-backfill as if never synced
)

// SyncPlan is the planner's verdict for one connection. When Skip is true
// the caller must not touch the provider.
type SyncPlan struct {
	Start  time.Time
	End    time.Time
	Skip   bool
	Reason PlanReason
}

// AccountFailure records one account that could not be reconciled, without
// aborting the rest of the batch.
type AccountFailure struct {
	ExternalID string
	Reason     string
}

type ReconcileResult struct {
	Created int
	Updated int
	Closed  int
	Failed  []AccountFailure
}

// TransactionFailure records one transaction that could not be imported.
type TransactionFailure struct {
	ExternalID string
	Reason     string
}

type ImportResult struct {
	Imported int
	Skipped  int
	Failed   []TransactionFailure
}

// SyncResult summarizes one orchestrated sync for the caller.
type SyncResult struct {
	JobID                string     `json:"jobId"`
	ConnectionID         string     `json:"connectionId"`
	Outcome              string     `json:"outcome"`
	PlanReason           PlanReason `json:"planReason,omitempty"`
	AccountsCreated      int        `json:"accountsCreated"`
	AccountsUpdated      int        `json:"accountsUpdated"`
	AccountsClosed       int        `json:"accountsClosed"`
	TransactionsImported int        `json:"transactionsImported"`
	TransactionsSkipped  int        `json:"transactionsSkipped"`
	TransactionsFailed   int        `json:"transactionsFailed"`
	Errors               []string   `json:"errors,omitempty"`
}

// SweepResult summarizes a "sync all due connections" pass.
type SweepResult struct {
	ConnectionsSynced  int          `json:"connectionsSynced"`
	ConnectionsSkipped int          `json:"connectionsSkipped"`
	ConnectionsFailed  int          `json:"connectionsFailed"`
	Results            []SyncResult `json:"results,omitempty"`
}

// ConnectionHealth is the operator-facing health projection.
type ConnectionHealth struct {
	ConnectionID        string     `json:"connectionId"`
	Score               float64    `json:"score"`
	Band                string     `json:"band"`
	Status              string     `json:"status"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	LastSyncedAt        *time.Time `json:"lastSyncedAt,omitempty"`
	LastError           string     `json:"lastError,omitempty"`
}

// AuthorizationRequest is the handoff the HTTP layer gets back when a
// connection is created: where to send the user.
type AuthorizationRequest struct {
	ConnectionID     string `json:"connectionId"`
	AuthorizationURL string `json:"authorizationUrl"`
}
