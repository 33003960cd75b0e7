package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of mcpflow",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mcpflow version %s\n", rootCmd.Version)
		},
	}
}
