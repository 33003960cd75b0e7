package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var serversEnabledOnly bool

// serversCmd lists the available tool servers: the configured fleet when
// one is loaded, otherwise the built-in catalog.
var serversCmd = &cobra.Command{
	Use:   "servers [integration-id]",
	Short: "List available tool servers",
	Long: `List available tool servers.

With --config, the configured fleet is shown. Without it, the built-in
catalog of well-known servers is listed instead. Passing a numeric
integration ID prints that single entry as JSON.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServers,
}

// recommendCmd suggests servers for a task description.
var recommendCmd = &cobra.Command{
	Use:   "recommend <task description>",
	Short: "Recommend tool servers for a task",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRecommend,
}

func init() {
	rootCmd.AddCommand(serversCmd)
	rootCmd.AddCommand(recommendCmd)

	serversCmd.Flags().BoolVar(&serversEnabledOnly, "enabled", false, "show only enabled servers")
}

func runServers(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	defer svc.CloseAll()

	if len(args) == 1 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integration ID %q: %w", args[0], err)
		}
		integration, found := svc.FindIntegration(id)
		if !found {
			return fmt.Errorf("no integration with ID %d", id)
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(integration)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSLUG\tENABLED\tOFFICIAL\tENDPOINT")
	for _, integration := range svc.DiscoverServers() {
		if serversEnabledOnly && !integration.Enabled {
			continue
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%t\t%s\n",
			integration.ID, integration.Name, integration.Slug,
			integration.Enabled, integration.Official, integration.Endpoint)
	}
	return w.Flush()
}

func runRecommend(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	defer svc.CloseAll()

	recommendations := svc.Recommend(strings.Join(args, " "))
	if len(recommendations) == 0 {
		fmt.Println("No matching tool servers found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSCORE\tREASONS")
	for _, rec := range recommendations {
		fmt.Fprintf(w, "%s\t%.2f\t%s\n", rec.Integration.Name, rec.Score, strings.Join(rec.Reasons, "; "))
	}
	return w.Flush()
}
