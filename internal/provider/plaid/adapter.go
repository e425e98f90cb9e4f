package plaidadapter

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/plaid/plaid-go/v24/plaid"

	"github.com/centraflow/banksync-backend/internal/dto"
	"github.com/centraflow/banksync-backend/internal/errs"
	"github.com/centraflow/banksync-backend/internal/models"
)

const providerID = "plaid"

// Adapter is the cursor-family reference adapter. Plaid's /transactions/sync
// feed is driven entirely by an opaque cursor; date ranges are not part of
// the request, so FetchTransactions only honors opts.Marker and opts.Limit.
type Adapter struct {
	client      *plaid.APIClient
	redirectURI string
}

func NewAdapter(clientID, secret, environment, redirectURI string) *Adapter {
	cfg := plaid.NewConfiguration()
	cfg.AddDefaultHeader("PLAID-CLIENT-ID", clientID)
	cfg.AddDefaultHeader("PLAID-SECRET", secret)
	cfg.UseEnvironment(toPlaidEnv(environment))

	return &Adapter{
		client:      plaid.NewAPIClient(cfg),
		redirectURI: redirectURI,
	}
}

func (a *Adapter) ID() string { return providerID }

// AuthorizationURL mints a hosted Link session. Plaid has no static consent
// URL; the link token is created server-side and the hosted URL embeds it.
func (a *Adapter) AuthorizationURL(ctx context.Context, state, market string) (string, error) {
	country := plaid.CountryCode("US")
	if market != "" {
		country = plaid.CountryCode(market)
	}

	req := plaid.NewLinkTokenCreateRequest(
		"Banksync",
		"en",
		[]plaid.CountryCode{country},
		plaid.LinkTokenCreateRequestUser{ClientUserId: state},
	)
	req.SetProducts([]plaid.Products{plaid.PRODUCTS_TRANSACTIONS})
	req.SetHostedLink(plaid.LinkTokenCreateHostedLink{})
	if a.redirectURI != "" {
		req.SetRedirectUri(a.redirectURI)
	}

	resp, httpResp, err := a.client.PlaidApi.LinkTokenCreate(ctx).LinkTokenCreateRequest(*req).Execute()
	if err != nil {
		return "", a.mapErr("link token create", httpResp, err)
	}
	return resp.GetHostedLinkUrl(), nil
}

// ExchangeCode trades the Link public token for a long-lived access token.
// Plaid access tokens neither expire nor refresh, so ExpiresAt stays nil
// and RefreshToken empty.
func (a *Adapter) ExchangeCode(ctx context.Context, code string) (*models.Credential, error) {
	req := plaid.NewItemPublicTokenExchangeRequest(code)
	resp, httpResp, err := a.client.PlaidApi.ItemPublicTokenExchange(ctx).ItemPublicTokenExchangeRequest(*req).Execute()
	if err != nil {
		if httpResp != nil && httpResp.StatusCode >= 400 && httpResp.StatusCode < 500 {
			return nil, errs.NewAuthExchangeError(providerID, "public token exchange rejected: "+err.Error())
		}
		return nil, a.mapErr("public token exchange", httpResp, err)
	}

	return &models.Credential{
		AccessToken: resp.GetAccessToken(),
		TokenType:   "bearer",
		Status:      models.CredentialActive,
	}, nil
}

// Refresh always fails: Plaid issues no refresh token. Surfacing this as
// TokenRefreshUnavailableError lets the orchestrator park the connection
// in error instead of retrying forever.
func (a *Adapter) Refresh(ctx context.Context, cred *models.Credential) (*models.Credential, error) {
	return nil, errs.NewTokenRefreshUnavailableError(providerID, "plaid access tokens have no refresh path")
}

func (a *Adapter) FetchAccounts(ctx context.Context, cred *models.Credential) ([]dto.ProviderAccount, error) {
	req := plaid.NewAccountsGetRequest(cred.AccessToken)
	resp, httpResp, err := a.client.PlaidApi.AccountsGet(ctx).AccountsGetRequest(*req).Execute()
	if err != nil {
		return nil, a.mapErr("accounts get", httpResp, err)
	}

	item := resp.GetItem()
	bankName := InstitutionName(item.GetInstitutionId())

	accounts := make([]dto.ProviderAccount, 0, len(resp.GetAccounts()))
	for _, acc := range resp.GetAccounts() {
		raw, _ := json.Marshal(acc)
		balances := acc.GetBalances()
		accounts = append(accounts, dto.ProviderAccount{
			ExternalID:    acc.GetAccountId(),
			Name:          acc.GetName(),
			AccountNumber: acc.GetMask(),
			BankName:      bankName,
			AccountType:   toAccountType(acc),
			Currency:      balances.GetIsoCurrencyCode(),
			Balance:       balances.GetCurrent(),
			Raw:           string(raw),
		})
	}
	return accounts, nil
}

func (a *Adapter) FetchTransactions(ctx context.Context, cred *models.Credential, externalAccountID string, opts dto.FetchOptions) (dto.TransactionPage, error) {
	var page dto.TransactionPage

	req := plaid.NewTransactionsSyncRequest(cred.AccessToken)
	if opts.Marker != "" {
		req.SetCursor(opts.Marker)
	}
	count := int32(500)
	if opts.Limit > 0 && opts.Limit < 500 {
		count = int32(opts.Limit)
	}
	req.SetCount(count)
	reqOpts := plaid.NewTransactionsSyncRequestOptions()
	reqOpts.SetIncludePersonalFinanceCategory(true)
	req.SetOptions(*reqOpts)

	resp, httpResp, err := a.client.PlaidApi.TransactionsSync(ctx).TransactionsSyncRequest(*req).Execute()
	if err != nil {
		return page, a.mapErr("transactions sync", httpResp, err)
	}

	// The sync feed is item-wide; keep only the requested account's rows.
	txs := make([]dto.ProviderTransaction, 0, len(resp.GetAdded())+len(resp.GetModified()))
	for _, t := range resp.GetAdded() {
		if t.GetAccountId() == externalAccountID {
			txs = append(txs, convert(t))
		}
	}
	for _, t := range resp.GetModified() {
		if t.GetAccountId() == externalAccountID {
			txs = append(txs, convert(t))
		}
	}

	page.Transactions = txs
	page.Marker = resp.GetNextCursor()
	page.HasMore = resp.GetHasMore()
	return page, nil
}

func convert(t plaid.Transaction) dto.ProviderTransaction {
	raw, _ := json.Marshal(t)
	pfc := t.GetPersonalFinanceCategory()
	return dto.ProviderTransaction{
		ExternalID:   t.GetTransactionId(),
		Date:         t.GetDate(),
		Amount:       normalizeAmount(t.GetAmount()),
		Currency:     t.GetIsoCurrencyCode(),
		Description:  t.GetName(),
		Counterparty: t.GetMerchantName(),
		Category:     pfc.GetPrimary(),
		Pending:      t.GetPending(),
		Raw:          string(raw),
	}
}

// normalizeAmount flips Plaid's convention (outflow positive) to the
// canonical one (inflow positive).
func normalizeAmount(amount float64) float64 {
	return -amount
}

func toAccountType(acc plaid.AccountBase) string {
	switch acc.GetType() {
	case plaid.ACCOUNTTYPE_DEPOSITORY:
		if acc.GetSubtype() == plaid.ACCOUNTSUBTYPE_SAVINGS {
			return models.AccountTypeSavings
		}
		return models.AccountTypeChecking
	case plaid.ACCOUNTTYPE_CREDIT:
		return models.AccountTypeCredit
	case plaid.ACCOUNTTYPE_INVESTMENT, plaid.ACCOUNTTYPE_BROKERAGE:
		return models.AccountTypeInvestment
	default:
		return string(acc.GetType())
	}
}

func (a *Adapter) mapErr(operation string, httpResp *http.Response, err error) error {
	if httpResp != nil && httpResp.StatusCode >= 500 {
		return errs.NewProviderUnavailableError(providerID, operation+": "+err.Error())
	}
	if httpResp != nil && httpResp.StatusCode >= 400 {
		return errs.NewProviderDataError(providerID, operation+": "+err.Error(), "")
	}
	// No HTTP response at all: transport-level failure.
	return errs.NewProviderUnavailableError(providerID, operation+": "+err.Error())
}

func toPlaidEnv(environment string) plaid.Environment {
	switch environment {
	case "sandbox":
		return plaid.Sandbox
	default: // "production"
		return plaid.Production
	}
}
