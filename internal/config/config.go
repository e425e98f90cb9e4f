package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	ProjectID  string
	Region     string
	LogLevel   string
	KMSKeyName string

	PlaidClientID    string
	PlaidSecret      string
	PlaidEnvironment string // sandbox | production

	TinkClientID string
	TinkSecret   string
	TinkBaseURL  string

	// RedirectURI is the OAuth callback shared by all aggregators.
	RedirectURI string

	Sync SyncConfig
}

// SyncConfig carries the tunables the sync core treats as policy, not
// protocol. The defaults mirror the shipped product but nothing downstream
// assumes the exact numbers.
type SyncConfig struct {
	Throttle         time.Duration // minimum gap between unforced syncs
	IncrementalDays  int           // window when last sync was < ~1 day ago
	CatchUpDays      int           // window when last sync was < CatchUpDays ago
	BackfillDays     int           // default full-backfill window
	LongBackfillDays int           // backfill for savings/investment types
	FailureThreshold int           // consecutive failures before active -> error
	SyncBudget       time.Duration // wall-clock budget per sync attempt
	LockLease        time.Duration // sync lock lease; crashed workers expire
	SweepConcurrency int           // parallel connections in a sweep
}

func New() *Config {
	return &Config{
		ProjectID:  os.Getenv("PROJECTID"),
		Region:     os.Getenv("REGION"),
		LogLevel:   os.Getenv("LOGLEVEL"),
		KMSKeyName: os.Getenv("KMSKEYNAME"),

		PlaidClientID:    os.Getenv("PLAIDCLIENTID"),
		PlaidSecret:      os.Getenv("PLAIDSECRET"),
		PlaidEnvironment: os.Getenv("PLAIDENVIRONMENT"),

		TinkClientID: os.Getenv("TINKCLIENTID"),
		TinkSecret:   os.Getenv("TINKSECRET"),
		TinkBaseURL:  os.Getenv("TINKBASEURL"),

		RedirectURI: os.Getenv("OAUTHREDIRECTURI"),

		Sync: SyncConfig{
			Throttle:         getDuration("SYNCTHROTTLEHOURS", 20),
			IncrementalDays:  getInt("SYNCINCREMENTALDAYS", 2),
			CatchUpDays:      getInt("SYNCCATCHUPDAYS", 7),
			BackfillDays:     getInt("SYNCBACKFILLDAYS", 90),
			LongBackfillDays: getInt("SYNCLONGBACKFILLDAYS", 365),
			FailureThreshold: getInt("SYNCFAILURETHRESHOLD", 5),
			SyncBudget:       time.Duration(getInt("SYNCBUDGETSECONDS", 300)) * time.Second,
			LockLease:        time.Duration(getInt("SYNCLOCKLEASESECONDS", 600)) * time.Second,
			SweepConcurrency: getInt("SYNCSWEEPCONCURRENCY", 4),
		},
	}
}

// ---- Helpers ----

func getInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallbackHours int) time.Duration {
	return time.Duration(getInt(key, fallbackHours)) * time.Hour
}
