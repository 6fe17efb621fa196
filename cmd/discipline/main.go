// Package main is the CLI entry point for discipline.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "discipline",
	Short: "Time-based login regulation for local accounts",
	Long: `discipline manages local OS accounts and blocks their logins while
a regulation says so. A blocked account has its password swapped and its
sessions terminated; the real password comes back once login is allowed.

Policies protect themselves: an enabled policy cannot be deleted or weakened
until its protection runs out.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

var (
	configPath string
	socketPath string
	jsonOutput bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default depends on mode, or $DISCIPLINE_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "Control API socket (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(policyCmd)
	rootCmd.AddCommand(ruleCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(versionCmd)
}
