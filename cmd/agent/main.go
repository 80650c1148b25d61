// Package main implements focusflow-agent, a terminal client that feeds
// interaction events into the collector and reports focus metrics to the
// FocusFlow server.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL of the FocusFlow API
	serverURL string
	version   = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "focusflow-agent",
	Short: "Track focus from the terminal",
	Long: `focusflow-agent reads interaction events, turns them into focus metrics and
reports them to a FocusFlow server every few seconds.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:3000", "FocusFlow server URL")
	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(endCmd)
}
