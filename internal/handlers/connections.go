package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/centraflow/banksync-backend/internal/dto"
	"github.com/centraflow/banksync-backend/internal/errs"
	"github.com/centraflow/banksync-backend/internal/middleware"
	"github.com/centraflow/banksync-backend/internal/models"
	"github.com/centraflow/banksync-backend/internal/response"
)

type ConnectionService interface {
	Providers() []string
	Connect(ctx context.Context, tenantID, providerID, displayName, market string) (dto.AuthorizationRequest, error)
	HandleCallback(ctx context.Context, tenantID, state, code string) (*models.Connection, error)
	ListConnections(ctx context.Context, tenantID string) ([]*models.Connection, error)
	Disable(ctx context.Context, tenantID, connectionID string) error
}

type SyncService interface {
	RunSync(ctx context.Context, tenantID, connectionID string, force bool, trigger models.SyncTrigger) (dto.SyncResult, error)
	SyncAllDue(ctx context.Context, tenantID string, trigger models.SyncTrigger) (dto.SweepResult, error)
}

type HealthService interface {
	GetHealth(ctx context.Context, tenantID, connectionID string) (dto.ConnectionHealth, error)
}

type connectionHandlers struct {
	ResponseHandler response.ResponseHandler
	ConnectionSvc   ConnectionService
	SyncSvc         SyncService
	HealthSvc       HealthService
}

func NewConnectionHandlers(deps *Deps) *connectionHandlers {
	return &connectionHandlers{
		ResponseHandler: deps.ResponseHandler,
		ConnectionSvc:   deps.ConnectionSvc,
		SyncSvc:         deps.SyncSvc,
		HealthSvc:       deps.HealthSvc,
	}
}

func (h *connectionHandlers) ConnectionRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Connect)
	r.Get("/", h.ListConnections)
	r.Get("/callback", h.Callback)
	r.Post("/sync", h.SyncAll)
	r.Post("/{connectionId}/sync", h.Sync)
	r.Get("/{connectionId}/health", h.Health)
	r.Delete("/{connectionId}", h.Disable)
	return r
}

func (h *connectionHandlers) ListProviders(w http.ResponseWriter, r *http.Request) {
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, h.ConnectionSvc.Providers())
}

func (h *connectionHandlers) Connect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProviderID  string `json:"providerId"`
		DisplayName string `json:"displayName,omitempty"`
		Market      string `json:"market,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	if body.ProviderID == "" {
		h.ResponseHandler.HandleError(w, r, errs.NewValidationError("providerId is required"))
		return
	}

	tenant := middleware.TenantID(r.Context())
	auth, err := h.ConnectionSvc.Connect(r.Context(), tenant, body.ProviderID, body.DisplayName, body.Market)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}

	h.ResponseHandler.WriteSuccess(w, r, http.StatusCreated, auth)
}

// Callback is the OAuth redirect target. After storing the credential it
// kicks off an immediate first sync so the user sees data right away.
func (h *connectionHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		h.ResponseHandler.HandleError(w, r, errs.NewValidationError("state and code are required"))
		return
	}

	tenant := middleware.TenantID(r.Context())
	conn, err := h.ConnectionSvc.HandleCallback(r.Context(), tenant, state, code)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}

	result, err := h.SyncSvc.RunSync(r.Context(), tenant, conn.ConnectionID, false, models.TriggerManual)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}

	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, map[string]any{
		"connectionId": conn.ConnectionID,
		"sync":         result,
	})
}

func (h *connectionHandlers) ListConnections(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantID(r.Context())

	conns, err := h.ConnectionSvc.ListConnections(r.Context(), tenant)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}

	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, conns)
}

func (h *connectionHandlers) Sync(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Force bool `json:"force,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) { // allow empty body
		h.ResponseHandler.HandleError(w, r, err)
		return
	}

	tenant := middleware.TenantID(r.Context())
	connectionID := chi.URLParam(r, "connectionId")

	result, err := h.SyncSvc.RunSync(r.Context(), tenant, connectionID, body.Force, models.TriggerManual)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}

	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, result)
}

func (h *connectionHandlers) SyncAll(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantID(r.Context())

	result, err := h.SyncSvc.SyncAllDue(r.Context(), tenant, models.TriggerScheduled)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}

	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, result)
}

func (h *connectionHandlers) Health(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantID(r.Context())
	connectionID := chi.URLParam(r, "connectionId")

	health, err := h.HealthSvc.GetHealth(r.Context(), tenant, connectionID)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}

	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, health)
}

func (h *connectionHandlers) Disable(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantID(r.Context())
	connectionID := chi.URLParam(r, "connectionId")

	if err := h.ConnectionSvc.Disable(r.Context(), tenant, connectionID); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}

	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, nil)
}
