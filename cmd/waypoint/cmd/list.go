package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/waypoint/internal/core/registry"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored rule set revisions",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	env, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	summaries, err := registry.NewStore(env.queries).List(context.Background())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tID\tCHECKSUM\tCREATED\tACTIVE")
	for i, rs := range summaries {
		active := i == len(summaries)-1 || summaries[i+1].Service != rs.Service
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\n", rs.Service, rs.ID, rs.Checksum[:12], rs.CreatedAt.UTC().Format(time.RFC3339), active)
	}
	return w.Flush()
}
