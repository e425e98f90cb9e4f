package tinkadapter

import (
	"strings"
)

// institutionNames maps Tink financial institution IDs to display names.
// Unmapped IDs fall back to a cleaned-up form of the raw identifier.
var institutionNames = map[string]string{
	"se-handelsbanken": "Handelsbanken",
	"se-seb":           "SEB",
	"se-swedbank":      "Swedbank",
	"se-nordea":        "Nordea",
	"se-ica":           "ICA Banken",
	"de-dkb":           "Deutsche Kreditbank",
	"de-n26":           "N26",
	"nl-ing":           "ING",
	"fr-bnpparibas":    "BNP Paribas",
	"uk-demobank":      "Tink Demo Bank", // sandbox
}

func InstitutionName(institutionID string) string {
	if institutionID == "" {
		return ""
	}
	if name, ok := institutionNames[institutionID]; ok {
		return name
	}
	cleaned := institutionID
	if i := strings.Index(cleaned, "-"); i >= 0 && i <= 3 {
		cleaned = cleaned[i+1:] // drop a leading market prefix like "se-"
	}
	cleaned = strings.ReplaceAll(cleaned, "-", " ")
	cleaned = strings.ReplaceAll(cleaned, "_", " ")
	words := strings.Fields(cleaned)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
