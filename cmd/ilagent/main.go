package main

import (
	"fmt"
	"os"

	"github.com/ilert/ilagent/pkg/ingress/httpapi"
	"github.com/ilert/ilagent/pkg/log"
	"github.com/spf13/cobra"
)

var (
	// Version is set via ldflags at build time.
	Version = "dev"
)

func main() {
	httpapi.Version = Version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "ilagent",
	Short:   "ilagent forwards alert events and heartbeats to an incident-management API",
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "increase log verbosity, up to -vvv")
	rootCmd.PersistentFlags().String("upstream-url", "https://api.ilert.com/api", "base URL of the upstream incident-management API")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(eventCmd)
	rootCmd.AddCommand(heartbeatCmd)
	rootCmd.AddCommand(cleanupCmd)
}

func initLogging() {
	verbosity, _ := rootCmd.PersistentFlags().GetCount("verbose")
	log.Init(log.Config{Level: log.LevelForVerbosity(verbosity)})
}

func upstreamURL(cmd *cobra.Command) string {
	url, _ := cmd.Flags().GetString("upstream-url")
	return url
}
