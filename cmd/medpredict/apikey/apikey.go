package apikey

import (
	"context"
	"fmt"

	"github.com/cozy-creator/medpredict/internal/config"
	"github.com/cozy-creator/medpredict/internal/db"
	"github.com/cozy-creator/medpredict/internal/db/migrations"
	"github.com/cozy-creator/medpredict/internal/db/models"
	"github.com/cozy-creator/medpredict/internal/db/repository"
	"github.com/cozy-creator/medpredict/internal/utils/hashutil"
	"github.com/cozy-creator/medpredict/internal/utils/randutil"

	"github.com/spf13/cobra"
)

const keyLength = 32

// OpenFunc yields a repository and a func releasing it.
type OpenFunc func(ctx context.Context) (repository.IAPIKeyRepository, func() error, error)

var Cmd = NewCmd(openRepository)

func openRepository(ctx context.Context) (repository.IAPIKeyRepository, func() error, error) {
	driver, err := db.NewConnection(ctx, config.MustGetConfig().DB)
	if err != nil {
		return nil, nil, err
	}

	if _, err := migrations.Migrate(ctx, driver.GetDB()); err != nil {
		driver.Close()
		return nil, nil, err
	}

	return repository.NewAPIKeyRepository(driver.GetDB()), driver.Close, nil
}

func NewCmd(open OpenFunc) *cobra.Command {
	apiKeyCmd := &cobra.Command{
		Use:   "api-key",
		Short: "Manage API keys",
	}

	withRepo := func(cmd *cobra.Command, fn func(repository.IAPIKeyRepository) error) error {
		repo, release, err := open(cmd.Context())
		if err != nil {
			return err
		}
		defer release()

		return fn(repo)
	}

	newAPIKeyCmd := &cobra.Command{
		Use:   "new",
		Short: "Creates a new API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := randutil.RandomString(keyLength)
			if err != nil {
				return err
			}

			return withRepo(cmd, func(repo repository.IAPIKeyRepository) error {
				apiKey := models.NewAPIKey(hashutil.Sha3256Hash([]byte(key)), randutil.MaskString(key, 4, 4))
				if _, err := repo.Create(cmd.Context(), apiKey); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "API key created: %s\n", key)
				return nil
			})
		},
	}

	revokeAPIKeyCmd := &cobra.Command{
		Use:   "revoke <key>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			return withRepo(cmd, func(repo repository.IAPIKeyRepository) error {
				if err := repo.RevokeAPIKeyWithHash(cmd.Context(), hashutil.Sha3256Hash([]byte(key))); err != nil {
					return fmt.Errorf("failed to revoke API key: %w", err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "API key revoked: %s\n", randutil.MaskString(key, 4, 4))
				return nil
			})
		},
	}

	listAPIKeysCmd := &cobra.Command{
		Use:   "list",
		Short: "List all API keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd, func(repo repository.IAPIKeyRepository) error {
				apiKeys, err := repo.ListAPIKeys(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(apiKeys) == 0 {
					fmt.Fprintln(out, "No API keys found")
					return nil
				}

				fmt.Fprintln(out, "API keys:")
				for _, apiKey := range apiKeys {
					fmt.Fprintf(out, "%s (Revoked: %t, Created: %s)\n",
						apiKey.KeyMask, apiKey.IsRevoked, apiKey.CreatedAt.Format("2006-01-02 15:04:05"))
				}

				return nil
			})
		},
	}

	apiKeyCmd.AddCommand(newAPIKeyCmd, revokeAPIKeyCmd, listAPIKeysCmd)
	return apiKeyCmd
}
