package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var toolsTaskID string

// toolsCmd lists the tools a configured server exposes.
var toolsCmd = &cobra.Command{
	Use:   "tools <server>",
	Short: "List the tools a server exposes",
	Long: `Connect to a configured tool server and list its tools.

The server may be named by its ID, slug, or display name.`,
	Args: cobra.ExactArgs(1),
	RunE: runTools,
}

func init() {
	rootCmd.AddCommand(toolsCmd)

	toolsCmd.Flags().StringVar(&toolsTaskID, "task", "", "task ID whose overrides apply to the connection")
}

func runTools(cmd *cobra.Command, args []string) error {
	if err := requireConfig(); err != nil {
		return err
	}
	svc, err := newService()
	if err != nil {
		return err
	}
	defer svc.CloseAll()

	tools, err := svc.ListTools(context.Background(), args[0], toolsTaskID)
	if err != nil {
		return fmt.Errorf("failed to list tools for %s: %w", args[0], err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOOL\tDESCRIPTION")
	for _, tool := range tools {
		fmt.Fprintf(w, "%s\t%s\n", tool.Name, tool.Description)
	}
	return w.Flush()
}
