// Package kafkaconsumer consumes events and heartbeats from Kafka with
// manual offset commits: a message's offset is committed once the message
// has been handled without a retry verdict, whether its event was
// delivered upstream, dropped as undeliverable, or skipped as unparseable.
// A retryable delivery failure deliberately leaves the offset uncommitted
// and crashes the process (the daemon supervisor exits on any subtask
// panic), relying on the broker to redeliver the message once the process
// is restarted.
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/ilert/ilagent/pkg/config"
	"github.com/ilert/ilagent/pkg/dispatch"
	"github.com/ilert/ilagent/pkg/metrics"
	"github.com/ilert/ilagent/pkg/model"
	"github.com/ilert/ilagent/pkg/upstream"
	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"
)

const crashSleep = 5 * time.Second

// Consumer pulls records off the configured event/heartbeat topics and
// dispatches them without ever touching the local SQLite queue: Kafka's
// own offsets provide the redelivery guarantee instead.
type Consumer struct {
	cfg        *config.Config
	dispatcher *dispatch.Dispatcher
	upstream   *upstream.Client
	log        zerolog.Logger
}

// New returns a Consumer for the given config and collaborators.
func New(cfg *config.Config, d *dispatch.Dispatcher, u *upstream.Client, log zerolog.Logger) *Consumer {
	return &Consumer{cfg: cfg, dispatcher: d, upstream: u, log: log.With().Str("component", "kafka").Logger()}
}

// Run connects to the brokers, subscribes to the configured topics as a
// member of the configured group, and processes fetches until ctx is
// cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	var topics []string
	if c.cfg.EventTopic != "" {
		topics = append(topics, c.cfg.EventTopic)
	}
	if c.cfg.HeartbeatTopic != "" {
		topics = append(topics, c.cfg.HeartbeatTopic)
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(strings.Split(c.cfg.KafkaBrokers, ",")...),
		kgo.ConsumerGroup(c.cfg.KafkaGroupID),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
		kgo.SessionTimeout(6*time.Second),
	)
	if err != nil {
		return err
	}
	defer client.Close()

	c.log.Info().Strs("topics", topics).Str("group_id", c.cfg.KafkaGroupID).Msg("subscribed to kafka topics")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		fetches := client.PollFetches(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, e := range errs {
				c.log.Warn().Err(e.Err).Str("topic", e.Topic).Msg("kafka fetch error")
			}
		}

		fetches.EachRecord(func(rec *kgo.Record) {
			c.handleRecord(ctx, client, rec)
		})
	}
}

func (c *Consumer) handleRecord(ctx context.Context, client *kgo.Client, rec *kgo.Record) {
	var retry bool
	switch rec.Topic {
	case c.cfg.EventTopic:
		retry = c.handleEvent(ctx, rec)
	case c.cfg.HeartbeatTopic:
		retry = c.handleHeartbeat(ctx, rec)
	default:
		c.log.Warn().Str("topic", rec.Topic).Msg("received kafka message from unsubscribed topic")
	}

	if retry {
		c.log.Error().Msg("failed to deliver event, leaving offset uncommitted, will exit in 5 seconds")
		time.Sleep(crashSleep)
		panic("kafkaconsumer: failed to deliver event, refusing to commit offset")
	}

	if err := client.CommitRecords(ctx, rec); err != nil {
		c.log.Error().Err(err).Msg("failed to commit kafka offset")
	}
}

func (c *Consumer) handleHeartbeat(ctx context.Context, rec *kgo.Record) bool {
	h, ok := model.ParseHeartbeatJSON(rec.Value)
	if !ok {
		c.log.Error().Msg("failed to decode kafka heartbeat payload")
		return false
	}

	resp, err := c.upstream.PingHeartbeat(ctx, h.APIKey)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to ping heartbeat")
		return false
	}
	metrics.HeartbeatsSentTotal.Inc()
	c.log.Info().Int("status", resp.Status).Str("api_key", h.APIKey).Msg("heartbeat pinged, triggered by kafka message")
	return false
}

// handleEvent maps the record, stamps its kafka key/topic into
// customDetails (overwriting anything the remap step produced), and
// delivers it upstream synchronously - returning true means the caller
// must not commit the offset.
func (c *Consumer) handleEvent(ctx context.Context, rec *kgo.Record) bool {
	event, ok, err := model.MapEvent(c.cfg, rec.Value, rec.Topic)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to parse kafka event payload")
		return false
	}
	if !ok {
		return false
	}

	details, err := json.Marshal(map[string]string{
		"kafka_key":   string(rec.Key),
		"kafka_topic": rec.Topic,
	})
	if err == nil {
		event.CustomDetails = details
	}

	item := model.ToStore(event, "")
	metrics.EventsIngestedTotal.WithLabelValues("kafka").Inc()

	verdict := c.dispatcher.DeliverOne(ctx, item)
	return verdict == dispatch.VerdictRetry
}

