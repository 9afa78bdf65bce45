package main

import (
	"context"
	"fmt"

	"github.com/ilert/ilagent/pkg/log"
	"github.com/ilert/ilagent/pkg/upstream"
	"github.com/spf13/cobra"
)

var heartbeatCmd = &cobra.Command{
	Use:   "heartbeat",
	Short: "Ping a heartbeat key once",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, _ := cmd.Flags().GetString("heartbeat")
		if key == "" {
			return fmt.Errorf("heartbeat: --heartbeat is required")
		}

		u := upstream.New(upstreamURL(cmd))
		resp, err := u.PingHeartbeat(context.Background(), key)
		if err != nil {
			return fmt.Errorf("heartbeat: ping failed: %w", err)
		}

		log.Logger.Info().Int("status", resp.Status).Msg("heartbeat ping completed")
		fmt.Printf("status: %d\n", resp.Status)
		return nil
	},
}

func init() {
	heartbeatCmd.Flags().StringP("heartbeat", "b", "", "heartbeat key to ping (required)")
	_ = heartbeatCmd.MarkFlagRequired("heartbeat")
}
