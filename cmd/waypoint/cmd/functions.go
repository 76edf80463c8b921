package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var functionsCmd = &cobra.Command{
	Use:   "functions",
	Short: "List the built-in functions rule documents may call",
	Args:  cobra.NoArgs,
	RunE:  runFunctions,
}

func init() {
	rootCmd.AddCommand(functionsCmd)
	functionsCmd.Flags().String("partitions", "", "partition table file (default: embedded)")
}

func runFunctions(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "partitions version %s\n\n", engine.Partitions().Version())
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OWNER\tSIGNATURE")
	functions := engine.Functions()
	for _, name := range functions.Names() {
		fn, _ := functions.Lookup(name)
		fmt.Fprintf(w, "%s\t%s\n", fn.Owner, fn.Signature())
	}
	return w.Flush()
}
