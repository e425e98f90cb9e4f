package bootstrap

import (
	"context"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"

	"github.com/centraflow/banksync-backend/internal/config"
)

const (
	plaidSecretID = "plaid-client-secret"
	tinkSecretID  = "tink-client-secret"
)

func loadProviderSecrets(ctx context.Context, client *secretmanager.Client, cfg *config.Config) error {
	var err error
	if cfg.PlaidSecret == "" {
		cfg.PlaidSecret, err = accessSecret(ctx, client, cfg.ProjectID, plaidSecretID)
		if err != nil {
			return err
		}
	}
	if cfg.TinkSecret == "" {
		cfg.TinkSecret, err = accessSecret(ctx, client, cfg.ProjectID, tinkSecretID)
		if err != nil {
			return err
		}
	}
	return nil
}

func accessSecret(ctx context.Context, client *secretmanager.Client, projectID, secretID string) (string, error) {
	res, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest", projectID, secretID),
	})
	if err != nil {
		return "", err
	}
	return string(res.Payload.Data), nil
}
