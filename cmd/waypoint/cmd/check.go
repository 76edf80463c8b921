package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/solatis/waypoint/internal/types"
)

var checkCmd = &cobra.Command{
	Use:   "check FILE...",
	Short: "Parse and type-check rule documents",
	Long:  `Parses and type-checks each JSON or YAML rule document and prints every error found.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		doc, err := types.LoadDocument(data)
		if err == nil {
			_, err = engine.Compile(doc)
		}
		if err != nil {
			failed++
			for _, e := range multierr.Errors(err) {
				fmt.Fprintf(out, "%s: %v\n", path, e)
			}
			continue
		}
		fmt.Fprintf(out, "%s: ok (%d parameters, %d top-level rules)\n", path, len(doc.Parameters), len(doc.Rules))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(args))
	}
	return nil
}
