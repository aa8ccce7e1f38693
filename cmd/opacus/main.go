// Command opacus is the Opacus driver binary: it runs a relay or acts as
// a one-shot client against one.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "opacus",
		Short: "Opacus agent messaging fabric",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// A local .env can carry OPACUS_RELAY_URL and key material.
			if err := godotenv.Load(); err == nil {
				logrus.Debug("Loaded environment from .env")
			}
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.PersistentFlags().Bool("verbose", false, "enable debug logging")

	root.AddCommand(newRelayCmd())
	root.AddCommand(newIdentityCmd())
	root.AddCommand(newSendCmd())
	root.AddCommand(newStreamCmd())

	if err := root.Execute(); err != nil {
		logrus.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}

// relayURL resolves the relay endpoint from the flag or environment.
func relayURL(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("OPACUS_RELAY_URL"); env != "" {
		return env
	}
	return "quic://localhost:4242"
}
