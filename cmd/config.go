package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var configTaskID string

// configCmd shows a server's effective configuration, with a task's
// overrides applied when one is named.
var configCmd = &cobra.Command{
	Use:   "config <server>",
	Short: "Show a server's effective configuration",
	Long: `Show a server's effective configuration as JSON.

With --task, that task's configuration overrides are applied on top of
the server's base configuration.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.Flags().StringVar(&configTaskID, "task", "", "task ID whose overrides apply")
}

func runConfig(cmd *cobra.Command, args []string) error {
	if err := requireConfig(); err != nil {
		return err
	}
	svc, err := newService()
	if err != nil {
		return err
	}
	defer svc.CloseAll()

	effective, err := svc.EffectiveConfig(args[0], configTaskID)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(effective)
}
