package plaidadapter

import (
	"context"
	"testing"

	"github.com/plaid/plaid-go/v24/plaid"

	"github.com/centraflow/banksync-backend/internal/errs"
	"github.com/centraflow/banksync-backend/internal/models"
)

func TestNormalizeAmountFlipsSign(t *testing.T) {
	// Plaid reports outflows positive; canonical is inflow positive.
	if got := normalizeAmount(25.50); got != -25.50 {
		t.Fatalf("normalizeAmount(25.50) = %v, want -25.50", got)
	}
	if got := normalizeAmount(-1000); got != 1000 {
		t.Fatalf("normalizeAmount(-1000) = %v, want 1000", got)
	}
	if got := normalizeAmount(0); got != 0 {
		t.Fatalf("normalizeAmount(0) = %v, want 0", got)
	}
}

func TestToAccountType(t *testing.T) {
	depository := plaid.AccountBase{Type: plaid.ACCOUNTTYPE_DEPOSITORY}
	if got := toAccountType(depository); got != models.AccountTypeChecking {
		t.Fatalf("depository = %q, want checking", got)
	}

	savings := plaid.AccountBase{Type: plaid.ACCOUNTTYPE_DEPOSITORY}
	savings.SetSubtype(plaid.ACCOUNTSUBTYPE_SAVINGS)
	if got := toAccountType(savings); got != models.AccountTypeSavings {
		t.Fatalf("depository/savings = %q, want savings", got)
	}

	credit := plaid.AccountBase{Type: plaid.ACCOUNTTYPE_CREDIT}
	if got := toAccountType(credit); got != models.AccountTypeCredit {
		t.Fatalf("credit = %q, want credit", got)
	}

	for _, typ := range []plaid.AccountType{plaid.ACCOUNTTYPE_INVESTMENT, plaid.ACCOUNTTYPE_BROKERAGE} {
		acc := plaid.AccountBase{Type: typ}
		if got := toAccountType(acc); got != models.AccountTypeInvestment {
			t.Fatalf("%s = %q, want investment", typ, got)
		}
	}

	loan := plaid.AccountBase{Type: plaid.ACCOUNTTYPE_LOAN}
	if got := toAccountType(loan); got != "loan" {
		t.Fatalf("loan = %q, want raw type passthrough", got)
	}
}

func TestInstitutionName(t *testing.T) {
	cases := map[string]string{
		"ins_3":         "Chase",
		"ins_109508":    "First Platypus Bank",
		"":              "",
		"ins_some_bank": "Some Bank",
		"acme-savings":  "Acme Savings",
	}
	for in, want := range cases {
		if got := InstitutionName(in); got != want {
			t.Fatalf("InstitutionName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRefreshIsTerminal(t *testing.T) {
	a := NewAdapter("client-id", "secret", "sandbox", "https://app.example.test/callback")

	_, err := a.Refresh(context.Background(), &models.Credential{AccessToken: "access-token"})
	if _, ok := err.(*errs.TokenRefreshUnavailableError); !ok {
		t.Fatalf("error = %T, want TokenRefreshUnavailableError", err)
	}
}

func TestToPlaidEnv(t *testing.T) {
	if toPlaidEnv("sandbox") != plaid.Sandbox {
		t.Fatal("sandbox must map to the sandbox host")
	}
	if toPlaidEnv("production") != plaid.Production {
		t.Fatal("production must map to the production host")
	}
	if toPlaidEnv("") != plaid.Production {
		t.Fatal("unset environment must default to production")
	}
}
