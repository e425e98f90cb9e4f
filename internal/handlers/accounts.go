package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/centraflow/banksync-backend/internal/middleware"
	"github.com/centraflow/banksync-backend/internal/models"
	"github.com/centraflow/banksync-backend/internal/response"
)

type AccountService interface {
	ListAccounts(ctx context.Context, tenantID string) ([]*models.Account, error)
	GetAccount(ctx context.Context, tenantID, accountID string) (*models.Account, error)
	ListTransactions(ctx context.Context, tenantID, accountID, from, to string) ([]*models.Transaction, error)
	CreateManualAccount(ctx context.Context, tenantID string, acc *models.Account) (*models.Account, error)
	RenameAccount(ctx context.Context, tenantID, accountID, name string) (*models.Account, error)
}

type accountHandlers struct {
	ResponseHandler response.ResponseHandler
	AccountSvc      AccountService
}

func NewAccountHandlers(deps *Deps) *accountHandlers {
	return &accountHandlers{
		ResponseHandler: deps.ResponseHandler,
		AccountSvc:      deps.AccountSvc,
	}
}

func (h *accountHandlers) AccountRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListAccounts)
	r.Post("/", h.CreateManualAccount)
	r.Get("/{accountId}", h.GetAccount)
	r.Patch("/{accountId}", h.RenameAccount)
	r.Get("/{accountId}/transactions", h.ListTransactions)
	return r
}

func (h *accountHandlers) ListAccounts(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantID(r.Context())

	accounts, err := h.AccountSvc.ListAccounts(r.Context(), tenant)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}

	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, accounts)
}

func (h *accountHandlers) GetAccount(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantID(r.Context())
	accountID := chi.URLParam(r, "accountId")

	acc, err := h.AccountSvc.GetAccount(r.Context(), tenant, accountID)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}

	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, acc)
}

func (h *accountHandlers) CreateManualAccount(w http.ResponseWriter, r *http.Request) {
	var body models.Account
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}

	tenant := middleware.TenantID(r.Context())
	acc, err := h.AccountSvc.CreateManualAccount(r.Context(), tenant, &body)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}

	h.ResponseHandler.WriteSuccess(w, r, http.StatusCreated, acc)
}

func (h *accountHandlers) RenameAccount(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DisplayName string `json:"displayName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}

	tenant := middleware.TenantID(r.Context())
	accountID := chi.URLParam(r, "accountId")

	acc, err := h.AccountSvc.RenameAccount(r.Context(), tenant, accountID, body.DisplayName)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}

	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, acc)
}

func (h *accountHandlers) ListTransactions(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantID(r.Context())
	accountID := chi.URLParam(r, "accountId")
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")

	txs, err := h.AccountSvc.ListTransactions(r.Context(), tenant, accountID, from, to)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}

	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, txs)
}
