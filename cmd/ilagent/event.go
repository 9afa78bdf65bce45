package main

import (
	"context"
	"fmt"

	"github.com/ilert/ilagent/pkg/log"
	"github.com/ilert/ilagent/pkg/model"
	"github.com/ilert/ilagent/pkg/upstream"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Send a single event directly upstream, bypassing the local queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		apiKey, _ := cmd.Flags().GetString("api_key")
		summary, _ := cmd.Flags().GetString("summary")
		eventType, _ := cmd.Flags().GetString("event_type")
		priority, _ := cmd.Flags().GetString("priority")
		details, _ := cmd.Flags().GetString("details")
		alertKey, _ := cmd.Flags().GetString("alert_key")
		images, _ := cmd.Flags().GetStringArray("image")
		links, _ := cmd.Flags().GetStringArray("link")

		if _, ok := model.ParseEventType(eventType); !ok {
			return fmt.Errorf("event: unsupported event_type %q", eventType)
		}
		if priority != "" {
			if _, ok := model.ParsePriority(priority); !ok {
				return fmt.Errorf("event: unsupported priority %q", priority)
			}
		}

		e := model.EventJSON{
			APIKey:    apiKey,
			EventType: eventType,
			Summary:   summary,
		}
		if details != "" {
			e.Details = &details
		}
		if alertKey != "" {
			e.AlertKey = &alertKey
		}
		if priority != "" {
			e.Priority = &priority
		}
		for _, src := range images {
			e.Images = append(e.Images, model.Image{Src: src})
		}
		for _, href := range links {
			e.Links = append(e.Links, model.Link{Href: href})
		}

		u := upstream.New(upstreamURL(cmd))
		resp, err := u.SendEvent(context.Background(), e, "")
		if err != nil {
			return fmt.Errorf("event: send failed: %w", err)
		}

		log.Logger.Info().Int("status", resp.Status).Msg("event post completed")
		fmt.Printf("status: %d\n%s\n", resp.Status, resp.Body)
		return nil
	},
}

func init() {
	eventCmd.Flags().StringP("api_key", "k", "", "upstream api key (required)")
	eventCmd.Flags().StringP("summary", "s", "", "event summary")
	eventCmd.Flags().StringP("event_type", "t", "ALERT", "event type: ALERT, ACCEPT, or RESOLVE")
	eventCmd.Flags().StringP("priority", "o", "", "priority: LOW or HIGH")
	eventCmd.Flags().StringP("details", "d", "", "free-form event details")
	eventCmd.Flags().StringP("alert_key", "i", "", "correlation key for deduplication upstream")
	eventCmd.Flags().StringArrayP("image", "g", nil, "image URL; repeatable")
	eventCmd.Flags().StringArrayP("link", "l", nil, "link URL; repeatable")
	_ = eventCmd.MarkFlagRequired("api_key")
}
