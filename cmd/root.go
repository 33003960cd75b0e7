package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mcpflow/internal/config"
	"mcpflow/internal/reporting"
	"mcpflow/internal/service"
	"mcpflow/pkg/logging"
)

var (
	configPath string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mcpflow",
	Short: "Manage connections to MCP tool servers",
	Long: `mcpflow manages the lifecycle of MCP tool server connections:
discovering available servers, enforcing capability permissions,
pooling transports per task, and executing tools with telemetry.`,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// handled by us (e.g. invalid arguments, failed connections)
	SilenceUsage: true,
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mcpflow version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML file with tool server definitions")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newVersionCmd())
}

// newService initializes logging, assembles a wired service, and loads
// server definitions when a config file was given.
func newService() (*service.Service, error) {
	logging.Init(parseLogLevel(logLevel), os.Stderr)

	svc := service.New(reporting.NewEventBus())
	if configPath != "" {
		defs, err := config.LoadServerDefinitions(configPath)
		if err != nil {
			return nil, err
		}
		if err := svc.Configure(defs); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

func parseLogLevel(level string) logging.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

// requireConfig fails fast for commands that cannot do anything without
// a configured fleet.
func requireConfig() error {
	if configPath == "" {
		return fmt.Errorf("no server definitions: pass --config with a YAML definitions file")
	}
	return nil
}
