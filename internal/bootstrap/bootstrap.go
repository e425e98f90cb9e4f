package bootstrap

import (
	"context"
	"log/slog"

	"cloud.google.com/go/firestore"
	gcpkms "cloud.google.com/go/kms/apiv1"
	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"firebase.google.com/go/v4/auth"

	"github.com/centraflow/banksync-backend/internal/config"
	"github.com/centraflow/banksync-backend/internal/provider"
	plaidadapter "github.com/centraflow/banksync-backend/internal/provider/plaid"
	tinkadapter "github.com/centraflow/banksync-backend/internal/provider/tink"
	"github.com/centraflow/banksync-backend/pkg/logger"
)

type Bootstrap struct {
	Log       *slog.Logger
	Firestore *firestore.Client
	Firebase  *auth.Client
	KMS       *gcpkms.KeyManagementClient
	Registry  *provider.Registry

	secrets *secretmanager.Client
}

func Run(cfg *config.Config) (*Bootstrap, error) {
	var err error
	applicationCtx := context.Background()
	bs := new(Bootstrap)

	bs.Log = logger.New(cfg.LogLevel, logger.NewCloudRunHandler)

	bs.Firestore, err = InitFirestore(applicationCtx, cfg.ProjectID)
	if err != nil {
		return bs, err
	}
	bs.Firebase, err = InitFirebase(applicationCtx)
	if err != nil {
		return bs, err
	}
	bs.KMS, err = gcpkms.NewKeyManagementClient(applicationCtx)
	if err != nil {
		return bs, err
	}
	bs.secrets, err = secretmanager.NewClient(applicationCtx)
	if err != nil {
		return bs, err
	}

	// Aggregator client secrets come from Secret Manager unless the env
	// already provides them (local development).
	if err := loadProviderSecrets(applicationCtx, bs.secrets, cfg); err != nil {
		return bs, err
	}

	bs.Registry = provider.NewRegistry(
		plaidadapter.NewAdapter(cfg.PlaidClientID, cfg.PlaidSecret, cfg.PlaidEnvironment, cfg.RedirectURI),
		tinkadapter.NewAdapter(cfg.TinkClientID, cfg.TinkSecret, cfg.TinkBaseURL, cfg.RedirectURI),
	)

	return bs, nil
}

func (b *Bootstrap) Close() {
	if b.Firestore != nil {
		b.Firestore.Close()
	}
	if b.KMS != nil {
		b.KMS.Close()
	}
	if b.secrets != nil {
		b.secrets.Close()
	}
}
