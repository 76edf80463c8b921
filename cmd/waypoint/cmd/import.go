package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/waypoint/internal/core/registry"
)

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Validate a rule document and store it as a service's active rule set",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var importService string

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVar(&importService, "service", "", "service the rule set belongs to")
	_ = importCmd.MarkFlagRequired("service")
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
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
	rs, err := reg.Import(context.Background(), importService, data)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", rs.ID, rs.Service, rs.Checksum[:12])
	return nil
}
