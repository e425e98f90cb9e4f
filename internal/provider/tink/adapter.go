// Package tinkadapter implements the page-token-family reference adapter
// against Tink's data API. Tink paginates with an explicit date-range query
// plus a pageToken, encodes monetary values as {unscaledValue, scale}
// fixed-point pairs, and issues short-lived access tokens with a refresh
// token alongside.
package tinkadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/centraflow/banksync-backend/internal/dto"
	"github.com/centraflow/banksync-backend/internal/errs"
	"github.com/centraflow/banksync-backend/internal/models"
)

const (
	providerID     = "tink"
	defaultBaseURL = "https://api.tink.com"
	linkBaseURL    = "https://link.tink.com/1.0/transactions/connect-accounts"
	defaultMarket  = "SE"

	tokenPath        = "/api/v1/oauth/token"
	accountsPath     = "/data/v2/accounts"
	transactionsPath = "/data/v2/transactions"
)

type Adapter struct {
	httpClient  *http.Client
	baseURL     string
	clientID    string
	secret      string
	redirectURI string
	clockNow    func() time.Time
}

func NewAdapter(clientID, secret, baseURL, redirectURI string) *Adapter {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Adapter{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     strings.TrimRight(baseURL, "/"),
		clientID:    clientID,
		secret:      secret,
		redirectURI: redirectURI,
		clockNow:    time.Now,
	}
}

func (a *Adapter) ID() string { return providerID }

func (a *Adapter) AuthorizationURL(ctx context.Context, state, market string) (string, error) {
	if market == "" {
		market = defaultMarket
	}
	q := url.Values{}
	q.Set("client_id", a.clientID)
	q.Set("redirect_uri", a.redirectURI)
	q.Set("market", market)
	q.Set("locale", "en_US")
	q.Set("state", state)
	return linkBaseURL + "?" + q.Encode(), nil
}

// ---- token endpoints ----

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

func (a *Adapter) ExchangeCode(ctx context.Context, code string) (*models.Credential, error) {
	form := url.Values{}
	form.Set("code", code)
	form.Set("client_id", a.clientID)
	form.Set("client_secret", a.secret)
	form.Set("grant_type", "authorization_code")

	tok, err := a.postToken(ctx, form)
	if err != nil {
		// Transient transport failures stay retryable; everything else on
		// the token endpoint means the code was bad.
		if pu, ok := err.(*errs.ProviderUnavailableError); ok {
			return nil, pu
		}
		return nil, errs.NewAuthExchangeError(providerID, "code exchange failed: "+err.Error())
	}
	return a.credentialFrom(tok), nil
}

func (a *Adapter) Refresh(ctx context.Context, cred *models.Credential) (*models.Credential, error) {
	if !cred.Refreshable() {
		return nil, errs.NewTokenRefreshUnavailableError(providerID, "no refresh token issued for this consent")
	}

	form := url.Values{}
	form.Set("refresh_token", cred.RefreshToken)
	form.Set("client_id", a.clientID)
	form.Set("client_secret", a.secret)
	form.Set("grant_type", "refresh_token")

	tok, err := a.postToken(ctx, form)
	if err != nil {
		return nil, err
	}
	next := a.credentialFrom(tok)
	if next.RefreshToken == "" {
		// Tink rotates refresh tokens but keeps the old one valid when it
		// omits a new one from the response.
		next.RefreshToken = cred.RefreshToken
	}
	next.ConnectionID = cred.ConnectionID
	return next, nil
}

func (a *Adapter) credentialFrom(tok *tokenResponse) *models.Credential {
	cred := &models.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Status:       models.CredentialActive,
	}
	if tok.ExpiresIn > 0 {
		expiry := a.clockNow().Add(time.Duration(tok.ExpiresIn) * time.Second)
		cred.ExpiresAt = &expiry
	}
	return cred
}

func (a *Adapter) postToken(ctx context.Context, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errs.NewProviderUnavailableError(providerID, "token request build failed: "+err.Error())
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tok tokenResponse
	if err := a.do(req, "token", &tok); err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, errs.NewProviderDataError(providerID, "token response missing access_token", "")
	}
	return &tok, nil
}

// ---- accounts ----

// fixedPoint is Tink's wire encoding for monetary values. Both fields are
// strings on the wire.
type fixedPoint struct {
	UnscaledValue string `json:"unscaledValue"`
	Scale         string `json:"scale"`
}

func (f fixedPoint) decimal() (decimal.Decimal, error) {
	unscaled, err := decimal.NewFromString(f.UnscaledValue)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unscaledValue %q: %w", f.UnscaledValue, err)
	}
	scale, err := decimal.NewFromString(f.Scale)
	if err != nil {
		return decimal.Zero, fmt.Errorf("scale %q: %w", f.Scale, err)
	}
	if !scale.IsInteger() {
		return decimal.Zero, fmt.Errorf("scale %q: not an integer", f.Scale)
	}
	return unscaled.Shift(int32(-scale.IntPart())), nil
}

type currencyAmount struct {
	Value        fixedPoint `json:"value"`
	CurrencyCode string     `json:"currencyCode"`
}

type accountsResponse struct {
	Accounts []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Type        string `json:"type"`
		Identifiers struct {
			IBAN struct {
				IBAN string `json:"iban"`
				BBAN string `json:"bban"`
			} `json:"iban"`
			FinancialInstitution struct {
				AccountNumber string `json:"accountNumber"`
			} `json:"financialInstitution"`
		} `json:"identifiers"`
		Balances struct {
			Booked struct {
				Amount currencyAmount `json:"amount"`
			} `json:"booked"`
		} `json:"balances"`
		FinancialInstitutionID string `json:"financialInstitutionId"`
	} `json:"accounts"`
	NextPageToken string `json:"nextPageToken"`
}

func (a *Adapter) FetchAccounts(ctx context.Context, cred *models.Credential) ([]dto.ProviderAccount, error) {
	var out []dto.ProviderAccount
	pageToken := ""

	for {
		q := url.Values{}
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		var resp accountsResponse
		raw, err := a.get(ctx, cred, accountsPath, q, "accounts", &resp)
		if err != nil {
			return nil, err
		}

		for _, acc := range resp.Accounts {
			balance, err := acc.Balances.Booked.Amount.Value.decimal()
			if err != nil {
				return nil, errs.NewProviderDataError(providerID, "account balance: "+err.Error(), raw)
			}

			accountNumber := acc.Identifiers.FinancialInstitution.AccountNumber
			if accountNumber == "" {
				accountNumber = acc.Identifiers.IBAN.BBAN
			}

			accRaw, _ := json.Marshal(acc)
			out = append(out, dto.ProviderAccount{
				ExternalID:    acc.ID,
				Name:          acc.Name,
				AccountNumber: accountNumber,
				IBAN:          acc.Identifiers.IBAN.IBAN,
				BankName:      InstitutionName(acc.FinancialInstitutionID),
				AccountType:   toAccountType(acc.Type),
				Currency:      acc.Balances.Booked.Amount.CurrencyCode,
				Balance:       balance.InexactFloat64(),
				Raw:           string(accRaw),
			})
		}

		if resp.NextPageToken == "" {
			return out, nil
		}
		pageToken = resp.NextPageToken
	}
}

// ---- transactions ----

type transactionsResponse struct {
	Transactions []struct {
		ID           string         `json:"id"`
		AccountID    string         `json:"accountId"`
		Amount       currencyAmount `json:"amount"`
		Descriptions struct {
			Display  string `json:"display"`
			Original string `json:"original"`
		} `json:"descriptions"`
		Dates struct {
			Booked string `json:"booked"`
		} `json:"dates"`
		Status     string `json:"status"` // BOOKED | PENDING | UNDEFINED
		Categories struct {
			PFM struct {
				Name string `json:"name"`
			} `json:"pfm"`
		} `json:"categories"`
		MerchantInformation struct {
			MerchantName string `json:"merchantName"`
		} `json:"merchantInformation"`
	} `json:"transactions"`
	NextPageToken string `json:"nextPageToken"`
}

// FetchTransactions returns one page. Tink amounts are already signed with
// inflow positive, so they pass through unchanged (verified against the
// sandbox; re-verify for any new market).
func (a *Adapter) FetchTransactions(ctx context.Context, cred *models.Credential, externalAccountID string, opts dto.FetchOptions) (dto.TransactionPage, error) {
	var page dto.TransactionPage

	q := url.Values{}
	q.Set("accountIdIn", externalAccountID)
	if !opts.StartDate.IsZero() {
		q.Set("bookedDateGte", opts.StartDate.Format("2006-01-02"))
	}
	if !opts.EndDate.IsZero() {
		q.Set("bookedDateLte", opts.EndDate.Format("2006-01-02"))
	}
	if opts.Limit > 0 {
		q.Set("pageSize", fmt.Sprintf("%d", opts.Limit))
	}
	if opts.Marker != "" {
		q.Set("pageToken", opts.Marker)
	}

	var resp transactionsResponse
	raw, err := a.get(ctx, cred, transactionsPath, q, "transactions", &resp)
	if err != nil {
		return page, err
	}

	txs := make([]dto.ProviderTransaction, 0, len(resp.Transactions))
	for _, t := range resp.Transactions {
		amount, err := t.Amount.Value.decimal()
		if err != nil {
			return page, errs.NewProviderDataError(providerID, "transaction amount: "+err.Error(), raw)
		}

		description := t.Descriptions.Display
		if description == "" {
			description = t.Descriptions.Original
		}

		txRaw, _ := json.Marshal(t)
		txs = append(txs, dto.ProviderTransaction{
			ExternalID:   t.ID,
			Date:         t.Dates.Booked,
			Amount:       amount.InexactFloat64(),
			Currency:     t.Amount.CurrencyCode,
			Description:  description,
			Counterparty: t.MerchantInformation.MerchantName,
			Category:     t.Categories.PFM.Name,
			Pending:      t.Status == "PENDING",
			Raw:          string(txRaw),
		})
	}

	page.Transactions = txs
	page.Marker = resp.NextPageToken
	page.HasMore = resp.NextPageToken != ""
	return page, nil
}

// ---- HTTP plumbing ----

func (a *Adapter) get(ctx context.Context, cred *models.Credential, path string, q url.Values, operation string, out any) (string, error) {
	u := a.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", errs.NewProviderUnavailableError(providerID, operation+" request build failed: "+err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)

	return a.doRaw(req, operation, out)
}

func (a *Adapter) do(req *http.Request, operation string, out any) error {
	_, err := a.doRaw(req, operation, out)
	return err
}

func (a *Adapter) doRaw(req *http.Request, operation string, out any) (string, error) {
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", errs.NewProviderUnavailableError(providerID, operation+": "+err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", errs.NewProviderUnavailableError(providerID, operation+" read: "+err.Error())
	}
	raw := string(body)

	switch {
	case resp.StatusCode >= 500:
		return raw, errs.NewProviderUnavailableError(providerID, fmt.Sprintf("%s: status %d", operation, resp.StatusCode))
	case resp.StatusCode >= 400:
		return raw, errs.NewProviderDataError(providerID, fmt.Sprintf("%s: status %d", operation, resp.StatusCode), raw)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return raw, errs.NewProviderDataError(providerID, operation+" decode: "+err.Error(), raw)
	}
	return raw, nil
}

func toAccountType(tinkType string) string {
	switch tinkType {
	case "CHECKING":
		return models.AccountTypeChecking
	case "SAVINGS":
		return models.AccountTypeSavings
	case "CREDIT_CARD":
		return models.AccountTypeCredit
	case "INVESTMENT", "PENSION":
		return models.AccountTypeInvestment
	default:
		return strings.ToLower(tinkType)
	}
}
