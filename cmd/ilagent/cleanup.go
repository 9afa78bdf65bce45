package main

import (
	"context"
	"fmt"

	"github.com/ilert/ilagent/pkg/daemon"
	"github.com/ilert/ilagent/pkg/log"
	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Resolve every open alert returned by the upstream alert listing",
	RunE: func(cmd *cobra.Command, args []string) error {
		resource, _ := cmd.Flags().GetString("resource")
		if resource != "alerts" {
			return fmt.Errorf("cleanup: unsupported --resource %q, only \"alerts\" is supported", resource)
		}

		return daemon.RunCleanup(context.Background(), upstreamURL(cmd), log.Logger)
	},
}

func init() {
	cleanupCmd.Flags().String("resource", "alerts", "resource to clean up; only \"alerts\" is supported")
}
