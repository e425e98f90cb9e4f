package handlers

import (
	"log/slog"

	"firebase.google.com/go/v4/auth"

	"github.com/centraflow/banksync-backend/internal/response"
)

type Deps struct {
	Log             *slog.Logger
	ResponseHandler response.ResponseHandler
	Firebase        *auth.Client
	ConnectionSvc   ConnectionService
	SyncSvc         SyncService
	HealthSvc       HealthService
	AccountSvc      AccountService
}
