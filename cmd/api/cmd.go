package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/centraflow/banksync-backend/internal/bootstrap"
	"github.com/centraflow/banksync-backend/internal/config"
	"github.com/centraflow/banksync-backend/internal/crypto"
	"github.com/centraflow/banksync-backend/internal/handlers"
	"github.com/centraflow/banksync-backend/internal/response"
	"github.com/centraflow/banksync-backend/internal/router"
	"github.com/centraflow/banksync-backend/internal/services"
	"github.com/centraflow/banksync-backend/internal/store"
)

func exitOnError(message string, err error, log *slog.Logger) {
	if err != nil {
		log.Error(message, "error", err)
		os.Exit(1)
	}
}

func main() {
	// bootstrap
	cfg := config.New()
	bs, err := bootstrap.Run(cfg)
	exitOnError("bootstrap failed", err, bs.Log)
	defer bs.Close()

	// helpers
	kmsHelper := crypto.NewKMS(bs.KMS, cfg.KMSKeyName)

	// stores
	cstore := store.NewConnectionStore(bs.Firestore)
	crstore := store.NewCredentialStore(bs.Firestore, kmsHelper)
	astore := store.NewAccountStore(bs.Firestore)
	tstore := store.NewTransactionStore(bs.Firestore)
	jstore := store.NewSyncJobStore(bs.Firestore)
	mstore := store.NewMarkerStore(bs.Firestore)

	// services
	planner := services.NewPlanner(cfg.Sync)
	reconciler := services.NewReconciler(astore)
	importer := services.NewImporter(tstore)
	health := services.NewHealthTracker(jstore, cstore, cfg.Sync)
	syncserv := services.NewSyncService(bs.Registry, cstore, crstore, astore, jstore, mstore, planner, reconciler, importer, health, cfg.Sync)
	connserv := services.NewConnectionService(bs.Registry, cstore, crstore)
	accserv := services.NewAccountService(astore, tstore)

	// response handler
	rh := response.New(bs.Log)

	// dependancies
	deps := new(handlers.Deps)
	deps.Log = bs.Log
	deps.ResponseHandler = rh
	deps.Firebase = bs.Firebase
	deps.ConnectionSvc = connserv
	deps.SyncSvc = syncserv
	deps.HealthSvc = health
	deps.AccountSvc = accserv

	// router
	r := router.NewRouter(deps)
	err = http.ListenAndServe(":8080", r)
	exitOnError("server start failed", err, bs.Log)
}
