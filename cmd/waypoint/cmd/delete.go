package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/waypoint/internal/core/registry"
	"github.com/solatis/waypoint/internal/types"
)

var deleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a stored rule set revision",
	Long: `Deletes one rule set revision. Deleting a service's active revision makes
the previous revision active again.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	id, err := types.ParseRuleSetID(args[0])
	if err != nil {
		return fmt.Errorf("invalid rule set id %q: %w", args[0], err)
	}

	env, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	reg, err := newRegistry(env, registry.Options{})
	if err != nil {
		return err
	}
	if err := reg.Delete(context.Background(), id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s (imported %s)\n", id, types.RuleSetIDTime(id).UTC().Format(time.RFC3339))
	return nil
}
