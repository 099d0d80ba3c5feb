package cmd

import (
	"context"
	"fmt"

	"github.com/solatis/firewrite/internal/core/auth"
	"github.com/solatis/firewrite/internal/core/config"
	"github.com/solatis/firewrite/internal/core/db"
	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys",
}

var keysCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Issue an API key for a tenant",
	Long: `Issues an API key signed with the newest FW_HMAC_SECRET. The key is
printed once and cannot be recovered; only its HMAC is stored.`,
	Args: cobra.NoArgs,
	RunE: runKeysCreate,
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke <api-key-id>",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeysRevoke,
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysCreateCmd, keysRevokeCmd)
	keysCreateCmd.Flags().String("tenant", "", "tenant ID the key authenticates as")
	keysCreateCmd.Flags().String("name", "", "label for the key")
	_ = keysCreateCmd.MarkFlagRequired("tenant")
}

func openAuthenticator() (*auth.Authenticator, func(), error) {
	ctx := context.Background()
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	database, err := db.Open(ctx, cfg.DBURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	closeDB := func() { database.Close() }

	if err := db.RequireMigrated(ctx, database); err != nil {
		closeDB()
		return nil, nil, err
	}
	queries, err := db.LoadQueries(database)
	if err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}
	secrets, err := config.HMACSecrets()
	if err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	return auth.NewAuthenticator(secrets, queries), closeDB, nil
}

func runKeysCreate(cmd *cobra.Command, args []string) error {
	tenant, _ := cmd.Flags().GetString("tenant")
	name, _ := cmd.Flags().GetString("name")

	a, closeDB, err := openAuthenticator()
	if err != nil {
		return err
	}
	defer closeDB()

	id, key, err := a.IssueKey(tenant, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "api_key_id: %s\napi_key: %s\n", id, key)
	return nil
}

func runKeysRevoke(cmd *cobra.Command, args []string) error {
	a, closeDB, err := openAuthenticator()
	if err != nil {
		return err
	}
	defer closeDB()

	if err := a.RevokeKey(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", args[0])
	return nil
}
