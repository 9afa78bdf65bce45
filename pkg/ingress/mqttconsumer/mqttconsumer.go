// Package mqttconsumer subscribes to the event and heartbeat topics over
// MQTT and feeds parsed messages into the local queue (events) or straight
// upstream (heartbeats). Reconnection is handled by the underlying paho
// client; this package only needs to resubscribe on each new connection.
package mqttconsumer

import (
	"context"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ilert/ilagent/pkg/config"
	"github.com/ilert/ilagent/pkg/metrics"
	"github.com/ilert/ilagent/pkg/model"
	"github.com/ilert/ilagent/pkg/store"
	"github.com/ilert/ilagent/pkg/upstream"
	"github.com/rs/zerolog"
)

const qosAtMostOnce = 0

// Consumer subscribes to the configured event and heartbeat topics.
type Consumer struct {
	cfg      *config.Config
	store    *store.Store
	upstream *upstream.Client
	log      zerolog.Logger
}

// New returns a Consumer for the given config, store, and upstream client.
func New(cfg *config.Config, s *store.Store, u *upstream.Client, log zerolog.Logger) *Consumer {
	return &Consumer{cfg: cfg, store: s, upstream: u, log: log.With().Str("component", "mqtt").Logger()}
}

// Run connects, subscribes, and blocks until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(mqttBrokerURL(c.cfg)).
		SetClientID(c.cfg.MQTTName).
		SetKeepAlive(5 * time.Second).
		SetCleanSession(false).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Second).
		SetOnConnectHandler(c.onConnect)

	if c.cfg.MQTTUsername != "" {
		opts.SetUsername(c.cfg.MQTTUsername)
		opts.SetPassword(c.cfg.MQTTPassword)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return err
	}
	c.log.Info().Str("host", c.cfg.MQTTHost).Msg("connected to mqtt broker")

	<-ctx.Done()
	client.Disconnect(250)
	return nil
}

func (c *Consumer) onConnect(client mqtt.Client) {
	eventTopic := c.cfg.EventTopic
	heartbeatTopic := c.cfg.HeartbeatTopic

	if token := client.Subscribe(eventTopic, qosAtMostOnce, c.handleMessage); token.Wait() && token.Error() != nil {
		c.log.Error().Err(token.Error()).Str("topic", eventTopic).Msg("failed to subscribe to event topic")
	}
	if token := client.Subscribe(heartbeatTopic, qosAtMostOnce, c.handleMessage); token.Wait() && token.Error() != nil {
		c.log.Error().Err(token.Error()).Str("topic", heartbeatTopic).Msg("failed to subscribe to heartbeat topic")
	}
	c.log.Info().Str("event_topic", eventTopic).Str("heartbeat_topic", heartbeatTopic).Msg("subscribed to mqtt topics")
}

func (c *Consumer) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	topic := msg.Topic()
	payload := msg.Payload()

	c.log.Info().Str("topic", topic).Msg("received mqtt message")

	if topic == c.cfg.HeartbeatTopic {
		c.handleHeartbeat(payload)
		return
	}

	if topic == c.cfg.EventTopic || isWildcard(c.cfg.EventTopic) {
		c.handleEvent(payload, topic)
	}
}

// isWildcard reports whether the configured event topic subscription uses
// an MQTT wildcard, meaning messages on topics other than the literal
// event topic may still need event handling.
func isWildcard(topic string) bool {
	return strings.Contains(topic, "#") || strings.Contains(topic, "+")
}

func (c *Consumer) handleHeartbeat(payload []byte) {
	h, ok := model.ParseHeartbeatJSON(payload)
	if !ok {
		c.log.Error().Msg("failed to decode mqtt heartbeat payload")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := c.upstream.PingHeartbeat(ctx, h.APIKey)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to ping heartbeat")
		return
	}
	metrics.HeartbeatsSentTotal.Inc()
	c.log.Info().Int("status", resp.Status).Str("api_key", h.APIKey).Msg("heartbeat pinged via mqtt message")
}

func (c *Consumer) handleEvent(payload []byte, topic string) {
	event, ok, err := model.MapEvent(c.cfg, payload, topic)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to parse mqtt event payload")
		return
	}
	if !ok {
		return
	}

	item := model.ToStore(event, "")
	stored, err := c.store.Insert(item)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to enqueue mqtt event")
		return
	}
	metrics.EventsIngestedTotal.WithLabelValues("mqtt").Inc()
	c.log.Info().Str("event_id", stored.ID).Msg("event successfully created and added to queue")
}

func mqttBrokerURL(cfg *config.Config) string {
	return "tcp://" + cfg.MQTTHost + ":" + strconv.Itoa(cfg.MQTTPort)
}
