// Wifimgr-cfg provisions wifimgr devices from a laptop.
//
// It finds devices over mDNS, or talks to a portal at a known address,
// and drives the portal's HTTP API: read its state, list the networks it
// can see, submit credentials, or close the portal.
//
// Usage:
//
//	wifimgr-cfg [command] [flags]
//
// Running without arguments launches the interactive wizard.
// See 'wifimgr-cfg --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/wifimgr/internal/logging"
	"github.com/muurk/wifimgr/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "wifimgr-cfg",
	Short: "wifimgr device provisioning utility",
	Long: `Provision wifimgr devices over their setup portal.

Join the device's setup access point (or a network the device is on with
its portal running) and use the commands below, or the interactive wizard.

If no command is specified, the interactive wizard will launch automatically.`,
	Version: version.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.InitializeFromEnv()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWizard(cmd, args)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("wifimgr-cfg %s (commit: %s)\n", version.Version, version.Commit)
	},
}
