package plaidadapter

import (
	"strings"
)

// institutionNames maps the Plaid institution IDs we see most often to
// display names. Anything unmapped falls back to a cleaned-up form of the
// raw identifier rather than leaking "ins_xxx" into the UI.
var institutionNames = map[string]string{
	"ins_3":      "Chase",
	"ins_4":      "Wells Fargo",
	"ins_5":      "Citibank",
	"ins_6":      "US Bank",
	"ins_7":      "USAA",
	"ins_9":      "Capital One",
	"ins_13":     "PNC",
	"ins_14":     "TD Bank",
	"ins_25":     "Ally Bank",
	"ins_127989": "Bank of America",
	"ins_115585": "Charles Schwab",
	"ins_116794": "Fidelity",
	"ins_109508": "First Platypus Bank", // sandbox
	"ins_109509": "First Gingham Credit Union",
	"ins_109510": "Tattersall Federal Credit Union",
}

// InstitutionName resolves a Plaid institution ID to a human-readable bank
// name, with a cleanup fallback for unmapped IDs.
func InstitutionName(institutionID string) string {
	if institutionID == "" {
		return ""
	}
	if name, ok := institutionNames[institutionID]; ok {
		return name
	}
	cleaned := strings.TrimPrefix(institutionID, "ins_")
	cleaned = strings.ReplaceAll(cleaned, "_", " ")
	cleaned = strings.ReplaceAll(cleaned, "-", " ")
	return titleCase(cleaned)
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
