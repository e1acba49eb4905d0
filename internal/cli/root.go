// Package cli implements the TechLink command-line interface using Cobra.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "techlink",
	Short: "TechLink — presence and call-signaling relay",
	Long: `TechLink is a real-time relay for on-demand technician dispatch.
It tracks connected customers and technicians, pushes live availability
rosters, relays WebRTC signaling between peers, and brokers the
hire / accept / cancel / complete workflow over websockets.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
