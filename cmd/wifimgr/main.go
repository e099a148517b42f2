// Wifimgr joins a WiFi network from stored credentials and, when none
// work, raises a captive configuration portal.
//
// The portal is an access point with a DNS responder that sends every
// lookup to the portal web server, where a phone or laptop can pick a
// network and enter its password.
//
// Usage:
//
//	wifimgr [command] [flags]
//
// Running without arguments is the same as 'wifimgr run'.
// See 'wifimgr --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/wifimgr/internal/logging"
	"github.com/muurk/wifimgr/internal/version"
)

var (
	configPath string
	logLevel   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "wifimgr",
	Short: "WiFi provisioning manager with a captive portal",
	Long: `Connects the device to WiFi using stored credentials.

If no stored network can be joined, wifimgr starts an access point and a
captive portal. Join the access point from a phone, pick a network and
enter its password; the credentials are saved and the device connects.

If no command is specified, 'run' is used.`,
	Version: version.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(logLevel)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRun(cmd, args)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default is <config dir>/wifimgr/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); defaults to $"+logging.LogLevelEnvVar)

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("wifimgr %s (commit: %s)\n", version.Version, version.Commit)
	},
}
