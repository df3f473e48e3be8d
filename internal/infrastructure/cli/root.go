package cli

import (
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var projectPath string

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     "sovereign",
	Version: Version,
	Short:   "An autonomous release controller for managed artifacts",
	Long: `Sovereign applies approved backlog changes to deployed artifacts.
Each run snapshots the target, synthesizes a candidate rewrite, validates
it, and either commits and pushes the result or restores the original
bytes. Every outcome lands in an append-only release ledger, and a fixed
artifact set can be rolled back to any prior revision behind a smoke gate.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&projectPath, "path", "p", "", "workspace root (defaults to the current directory)")
}
