package models

import (
	"time"
)

type SyncOutcome string

const (
	SyncSuccess SyncOutcome = "success"
	SyncPartial SyncOutcome = "partial"
	SyncFailure SyncOutcome = "failure"
)

type SyncTrigger string

const (
	TriggerManual    SyncTrigger = "manual"
	TriggerScheduled SyncTrigger = "scheduled"
)

// SyncJob is one execution record of an orchestrated sync. It is created
// when the orchestrator starts and finalized exactly once; finalized jobs
// are immutable and feed the health tracker's rolling window.
type SyncJob struct {
	JobID        string      `firestore:"jobId" json:"jobId"`
	ConnectionID string      `firestore:"connectionId" json:"connectionId"`
	Trigger      SyncTrigger `firestore:"trigger" json:"trigger"`
	StartedAt    time.Time   `firestore:"startedAt" json:"startedAt"`
	FinishedAt   time.Time   `firestore:"finishedAt" json:"finishedAt"`
	Outcome      SyncOutcome `firestore:"outcome" json:"outcome"`
	PlanReason   string      `firestore:"planReason" json:"planReason,omitempty"`

	AccountsCreated int `firestore:"accountsCreated" json:"accountsCreated"`
	AccountsUpdated int `firestore:"accountsUpdated" json:"accountsUpdated"`
	AccountsClosed  int `firestore:"accountsClosed" json:"accountsClosed"`
	AccountsFailed  int `firestore:"accountsFailed" json:"accountsFailed"`

	TransactionsImported int `firestore:"transactionsImported" json:"transactionsImported"`
	TransactionsSkipped  int `firestore:"transactionsSkipped" json:"transactionsSkipped"`
	TransactionsFailed   int `firestore:"transactionsFailed" json:"transactionsFailed"`

	Errors []string `firestore:"errors" json:"errors,omitempty"`
}

// Succeeded counts both clean and partial outcomes: a partial sync still
// delivered data, so the health window treats it as a success.
func (j *SyncJob) Succeeded() bool {
	return j.Outcome == SyncSuccess || j.Outcome == SyncPartial
}
