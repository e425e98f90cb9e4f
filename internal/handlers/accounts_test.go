package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/centraflow/banksync-backend/internal/errs"
	"github.com/centraflow/banksync-backend/internal/models"
)

type stubAccountService struct {
	createCalled bool
	createAcc    *models.Account
	createErr    error

	renameCalled bool
	renameID     string
	renameName   string

	listTxCalled  bool
	listTxAccount string
	listTxFrom    string
	listTxTo      string
}

func (s *stubAccountService) ListAccounts(ctx context.Context, tenantID string) ([]*models.Account, error) {
	return nil, nil
}

func (s *stubAccountService) GetAccount(ctx context.Context, tenantID, accountID string) (*models.Account, error) {
	return &models.Account{AccountID: accountID}, nil
}

func (s *stubAccountService) ListTransactions(ctx context.Context, tenantID, accountID, from, to string) ([]*models.Transaction, error) {
	s.listTxCalled = true
	s.listTxAccount = accountID
	s.listTxFrom = from
	s.listTxTo = to
	return nil, nil
}

func (s *stubAccountService) CreateManualAccount(ctx context.Context, tenantID string, acc *models.Account) (*models.Account, error) {
	s.createCalled = true
	s.createAcc = acc
	if s.createErr != nil {
		return nil, s.createErr
	}
	return acc, nil
}

func (s *stubAccountService) RenameAccount(ctx context.Context, tenantID, accountID, name string) (*models.Account, error) {
	s.renameCalled = true
	s.renameID = accountID
	s.renameName = name
	return &models.Account{AccountID: accountID, DisplayName: name, NameCurated: true}, nil
}

func withAccountParam(req *http.Request, accountID string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("accountId", accountID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestCreateManualAccountHandler(t *testing.T) {
	accSvc := &stubAccountService{}
	resp := &stubResponseHandler{}
	h := NewAccountHandlers(&Deps{ResponseHandler: resp, AccountSvc: accSvc})

	req := tenantRequest(http.MethodPost, "/accounts", `{"displayName":"Cash","currency":"EUR"}`)
	rr := httptest.NewRecorder()
	h.CreateManualAccount(rr, req)

	if !accSvc.createCalled {
		t.Fatal("CreateManualAccount not called")
	}
	if accSvc.createAcc.DisplayName != "Cash" || accSvc.createAcc.Currency != "EUR" {
		t.Fatalf("service received %+v", accSvc.createAcc)
	}
	if !resp.writeSuccessCalled || resp.writeSuccessStatus != http.StatusCreated {
		t.Fatal("WriteSuccess not called with status 201")
	}
}

func TestCreateManualAccountHandlerForwardsValidation(t *testing.T) {
	accSvc := &stubAccountService{createErr: errs.NewValidationError("currency is required")}
	resp := &stubResponseHandler{}
	h := NewAccountHandlers(&Deps{ResponseHandler: resp, AccountSvc: accSvc})

	req := tenantRequest(http.MethodPost, "/accounts", `{"displayName":"Cash"}`)
	rr := httptest.NewRecorder()
	h.CreateManualAccount(rr, req)

	if !resp.handleErrorCalled {
		t.Fatal("HandleError not called")
	}
	if _, ok := resp.handleError.(*errs.ValidationError); !ok {
		t.Fatalf("error = %T, want ValidationError", resp.handleError)
	}
}

func TestRenameAccountHandler(t *testing.T) {
	accSvc := &stubAccountService{}
	resp := &stubResponseHandler{}
	h := NewAccountHandlers(&Deps{ResponseHandler: resp, AccountSvc: accSvc})

	req := withAccountParam(tenantRequest(http.MethodPatch, "/accounts/a1", `{"displayName":"Household"}`), "a1")
	rr := httptest.NewRecorder()
	h.RenameAccount(rr, req)

	if !accSvc.renameCalled || accSvc.renameID != "a1" || accSvc.renameName != "Household" {
		t.Fatalf("rename call = %q %q", accSvc.renameID, accSvc.renameName)
	}
	if !resp.writeSuccessCalled {
		t.Fatal("WriteSuccess not called")
	}
}

func TestListTransactionsHandlerForwardsRange(t *testing.T) {
	accSvc := &stubAccountService{}
	resp := &stubResponseHandler{}
	h := NewAccountHandlers(&Deps{ResponseHandler: resp, AccountSvc: accSvc})

	req := withAccountParam(tenantRequest(http.MethodGet, "/accounts/a1/transactions?from=2026-01-01&to=2026-02-01", ""), "a1")
	rr := httptest.NewRecorder()
	h.ListTransactions(rr, req)

	if !accSvc.listTxCalled || accSvc.listTxAccount != "a1" {
		t.Fatal("ListTransactions not forwarded")
	}
	if accSvc.listTxFrom != "2026-01-01" || accSvc.listTxTo != "2026-02-01" {
		t.Fatalf("range = %q..%q", accSvc.listTxFrom, accSvc.listTxTo)
	}
}
