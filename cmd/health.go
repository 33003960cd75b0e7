package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mcpflow/internal/health"
)

// healthCmd probes the health of configured servers.
var healthCmd = &cobra.Command{
	Use:   "health [server...]",
	Short: "Check the health of configured tool servers",
	Long: `Probe configured tool servers and report their status.

Without arguments every enabled server is checked.`,
	RunE: runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	if err := requireConfig(); err != nil {
		return err
	}
	svc, err := newService()
	if err != nil {
		return err
	}
	defer svc.CloseAll()

	targets := args
	if len(targets) == 0 {
		for _, def := range svc.ListEnabledServers() {
			targets = append(targets, def.ID)
		}
	}
	if len(targets) == 0 {
		fmt.Println("No enabled servers to check.")
		return nil
	}

	anyDown := false
	for _, serverID := range targets {
		record := svc.CheckHealth(context.Background(), serverID)
		if record.Status == health.StatusHealthy {
			fmt.Printf("%s: healthy (%s)\n", record.ServerID, record.Latency)
			continue
		}
		anyDown = true
		fmt.Printf("%s: down\n", record.ServerID)
		for _, e := range record.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	if anyDown {
		return fmt.Errorf("one or more servers are down")
	}
	return nil
}
