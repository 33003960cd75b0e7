package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mcpflow/internal/executor"
)

var (
	callParamsJSON string
	callTaskID     string
	callProjectID  string
)

// callCmd executes one tool on a configured server.
var callCmd = &cobra.Command{
	Use:   "call <server> <tool>",
	Short: "Execute a tool on a configured server",
	Long: `Execute a tool on a configured server and print the result as JSON.

Parameters are passed as a JSON object via --params. Task overrides
apply when --task names a task with overrides set.`,
	Args: cobra.ExactArgs(2),
	RunE: runCall,
}

func init() {
	rootCmd.AddCommand(callCmd)

	callCmd.Flags().StringVarP(&callParamsJSON, "params", "p", "", "tool parameters as a JSON object")
	callCmd.Flags().StringVar(&callTaskID, "task", "", "task ID whose overrides apply")
	callCmd.Flags().StringVar(&callProjectID, "project", "", "project ID recorded in telemetry")
}

func runCall(cmd *cobra.Command, args []string) error {
	if err := requireConfig(); err != nil {
		return err
	}
	svc, err := newService()
	if err != nil {
		return err
	}
	defer svc.CloseAll()

	var params map[string]any
	if callParamsJSON != "" {
		if err := json.Unmarshal([]byte(callParamsJSON), &params); err != nil {
			return fmt.Errorf("invalid --params JSON: %w", err)
		}
	}

	result, err := svc.Execute(context.Background(), executor.Request{
		Server:    args[0],
		Tool:      args[1],
		Params:    params,
		TaskID:    callTaskID,
		ProjectID: callProjectID,
	})
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("failed to render result: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("tool call failed: %s", result.ErrorMessage)
	}
	return nil
}
