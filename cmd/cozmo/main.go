// Command cozmo is a diagnostic CLI for the Cozmo UDP transport.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cozmo",
		Short: "Talk to a Cozmo robot over its UDP control protocol",
		Long: `cozmo drives the reverse-engineered reliable-UDP transport
the robot speaks: connect, run the handshake, keep the session
alive, and watch the packet stream.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		watchCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
