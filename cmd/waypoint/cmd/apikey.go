package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/waypoint/internal/core/auth"
	"github.com/solatis/waypoint/internal/core/config"
)

var apiKeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage publisher API keys for ImportRuleSet",
}

var apiKeyCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a key; it is printed once and only its HMAC is stored",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAuthenticator(cmd, func(a *auth.Authenticator) error {
			key, k, err := a.CreateKey(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "id:  %s\nkey: %s\n", k.ID, key)
			return nil
		})
	},
}

var apiKeyRevokeCmd = &cobra.Command{
	Use:   "revoke ID",
	Short: "Revoke a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAuthenticator(cmd, func(a *auth.Authenticator) error {
			return a.RevokeKey(context.Background(), args[0])
		})
	},
}

var apiKeyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAuthenticator(cmd, func(a *auth.Authenticator) error {
			keys, err := a.ListKeys(context.Background())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCREATED\tLAST USED\tREVOKED")
			for _, k := range keys {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", k.ID, k.Name, k.CreatedAt.UTC().Format(time.RFC3339),
					nullTime(k.LastUsedAt.Valid, k.LastUsedAt.Time), nullTime(k.RevokedAt.Valid, k.RevokedAt.Time))
			}
			return w.Flush()
		})
	},
}

func init() {
	rootCmd.AddCommand(apiKeyCmd)
	apiKeyCmd.AddCommand(apiKeyCreateCmd, apiKeyRevokeCmd, apiKeyListCmd)
}

func nullTime(valid bool, t time.Time) string {
	if !valid {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

// withAuthenticator opens the store and runs fn with an authenticator over
// the environment's HMAC secrets.
func withAuthenticator(cmd *cobra.Command, fn func(*auth.Authenticator) error) error {
	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	env, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer env.close()
	return fn(auth.NewAuthenticator(secrets, env.queries, logger.Named("auth")))
}
