package main

import (
	"context"

	"github.com/ilert/ilagent/pkg/config"
	"github.com/ilert/ilagent/pkg/daemon"
	"github.com/ilert/ilagent/pkg/log"
	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the forwarding agent: HTTP/MQTT/Kafka ingress, dispatcher, and heartbeat ticker",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.New()

		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.HTTPPort = port
			cfg.StartHTTP = true
		}
		cfg.HeartbeatKey, _ = cmd.Flags().GetString("heartbeat")
		cfg.DBFile, _ = cmd.Flags().GetString("file")

		cfg.MQTTHost, _ = cmd.Flags().GetString("mqtt_host")
		cfg.MQTTPort, _ = cmd.Flags().GetInt("mqtt_port")
		cfg.MQTTName, _ = cmd.Flags().GetString("mqtt_name")
		cfg.MQTTUsername, _ = cmd.Flags().GetString("mqtt_username")
		cfg.MQTTPassword, _ = cmd.Flags().GetString("mqtt_password")

		cfg.KafkaBrokers, _ = cmd.Flags().GetString("kafka_brokers")
		if groupID, _ := cmd.Flags().GetString("kafka_group_id"); groupID != "" {
			cfg.KafkaGroupID = groupID
		}

		if eventTopic, _ := cmd.Flags().GetString("event_topic"); eventTopic != "" {
			cfg.EventTopic = eventTopic
		}
		if heartbeatTopic, _ := cmd.Flags().GetString("heartbeat_topic"); heartbeatTopic != "" {
			cfg.HeartbeatTopic = heartbeatTopic
		}

		cfg.EventKey, _ = cmd.Flags().GetString("event_key")
		cfg.MapKeyEType, _ = cmd.Flags().GetString("map_key_etype")
		cfg.MapKeyAlertKey, _ = cmd.Flags().GetString("map_key_alert_key")
		cfg.MapKeySummary, _ = cmd.Flags().GetString("map_key_summary")
		cfg.MapValETypeAlert, _ = cmd.Flags().GetString("map_val_etype_alert")
		cfg.MapValETypeAccept, _ = cmd.Flags().GetString("map_val_etype_accept")
		cfg.MapValETypeResolve, _ = cmd.Flags().GetString("map_val_etype_resolve")

		cfg.FilterKey, _ = cmd.Flags().GetString("filter_key")
		cfg.FilterVal, _ = cmd.Flags().GetString("filter_val")

		return daemon.Run(context.Background(), cfg, upstreamURL(cmd), log.Logger)
	},
}

func init() {
	daemonCmd.Flags().IntP("port", "p", 0, "HTTP ingress port; enables the HTTP ingress when set")
	daemonCmd.Flags().StringP("heartbeat", "b", "", "heartbeat key to ping on a timer")
	daemonCmd.Flags().StringP("file", "f", "./ilagent.db3", "SQLite database file path")

	daemonCmd.Flags().StringP("mqtt_host", "m", "", "MQTT broker host")
	daemonCmd.Flags().IntP("mqtt_port", "q", 1883, "MQTT broker port")
	daemonCmd.Flags().StringP("mqtt_name", "n", "", "MQTT client id")
	daemonCmd.Flags().String("mqtt_username", "", "MQTT username")
	daemonCmd.Flags().String("mqtt_password", "", "MQTT password")

	daemonCmd.Flags().String("kafka_brokers", "", "comma-separated Kafka broker addresses")
	daemonCmd.Flags().String("kafka_group_id", "ilagent", "Kafka consumer group id")

	daemonCmd.Flags().StringP("event_topic", "e", "ilert/events", "MQTT/Kafka event topic")
	daemonCmd.Flags().StringP("heartbeat_topic", "r", "ilert/heartbeats", "MQTT/Kafka heartbeat topic")

	daemonCmd.Flags().String("event_key", "", "override apiKey on every remapped event")
	daemonCmd.Flags().String("map_key_etype", "", "raw JSON key to read eventType from")
	daemonCmd.Flags().String("map_key_alert_key", "", "raw JSON key to read alertKey from")
	daemonCmd.Flags().String("map_key_summary", "", "raw JSON key to read summary from")
	daemonCmd.Flags().String("map_val_etype_alert", "", "raw value that maps to eventType ALERT")
	daemonCmd.Flags().String("map_val_etype_accept", "", "raw value that maps to eventType ACCEPT")
	daemonCmd.Flags().String("map_val_etype_resolve", "", "raw value that maps to eventType RESOLVE")

	daemonCmd.Flags().String("filter_key", "", "raw JSON key that must be present to accept a message")
	daemonCmd.Flags().String("filter_val", "", "raw JSON value filter_key must equal, as a string")
}
