// Package dispatch is the polling dispatcher: it drains the queue store
// on a fixed tick, posts each event upstream, and classifies the response
// into a retry verdict.
package dispatch

import (
	"context"
	"net/http"
	"time"

	"github.com/ilert/ilagent/pkg/metrics"
	"github.com/ilert/ilagent/pkg/model"
	"github.com/ilert/ilagent/pkg/store"
	"github.com/ilert/ilagent/pkg/upstream"
	"github.com/rs/zerolog"
)

const (
	tickInterval = 5 * time.Second
	sleepGranule = 250 * time.Millisecond
	batchSize    = 20
)

// Verdict is the dispatcher's classification of an upstream delivery
// attempt, derived from the response's HTTP status code.
type Verdict int

const (
	VerdictSuccess Verdict = iota
	VerdictRetry
	VerdictDrop
)

func (v Verdict) String() string {
	switch v {
	case VerdictSuccess:
		return "success"
	case VerdictRetry:
		return "retry"
	default:
		return "drop"
	}
}

// Dispatcher owns the queue-draining loop.
type Dispatcher struct {
	store    *store.Store
	upstream *upstream.Client
	log      zerolog.Logger
}

// New returns a Dispatcher bound to the given store and upstream client.
func New(s *store.Store, u *upstream.Client, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{store: s, upstream: u, log: log.With().Str("component", "dispatch").Logger()}
}

// Run blocks, ticking every tickInterval (checked every sleepGranule for
// responsive shutdown) until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	lastRun := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(sleepGranule):
		}

		if time.Since(lastRun) < tickInterval {
			continue
		}
		lastRun = time.Now()

		items, err := d.store.Fetch(batchSize)
		if err != nil {
			d.log.Error().Err(err).Msg("failed to fetch queued events")
			continue
		}
		if len(items) > 0 {
			d.log.Info().Int("count", len(items)).Msg("found queued events")
			d.processBatch(ctx, items)
		}

		if depth, err := d.store.Depth(); err == nil {
			metrics.QueueDepth.Set(float64(depth))
		}
	}
}

func (d *Dispatcher) processBatch(ctx context.Context, items []model.QueueItem) {
	for _, item := range items {
		verdict := d.DeliverOne(ctx, item)
		metrics.EventsDispatchedTotal.WithLabelValues(verdict.String()).Inc()

		if verdict == VerdictRetry {
			d.log.Warn().Str("event_id", item.ID).Msg("delivery failed, will retry next tick")
			continue
		}

		if err := d.store.Delete(item.ID); err != nil {
			d.log.Warn().Err(err).Str("event_id", item.ID).Msg("failed to remove event from queue")
			continue
		}
		d.log.Info().Str("event_id", item.ID).Msg("removed event from queue")
	}
}

// DeliverOne sends a single queued event upstream and returns its verdict.
// It is also the entry point the Kafka consumer calls synchronously to
// obtain a retry verdict without ever touching the local queue.
func (d *Dispatcher) DeliverOne(ctx context.Context, item model.QueueItem) Verdict {
	log := d.log.With().Str("event_id", item.ID).Logger()

	if _, ok := model.ParseEventType(item.EventType); !ok {
		log.Error().Str("event_type", item.EventType).Msg("failed to parse event type, dropping")
		return VerdictDrop
	}

	if item.Priority != nil {
		if _, ok := model.ParsePriority(*item.Priority); !ok {
			log.Error().Str("priority", *item.Priority).Msg("failed to parse priority, dropping")
			return VerdictDrop
		}
	}

	event := model.FromStore(item)
	path := ""
	if item.EventAPIPath != nil {
		path = *item.EventAPIPath
	}

	resp, err := d.upstream.SendEvent(ctx, event, path)
	if err != nil {
		log.Error().Err(err).Msg("network error during event post")
		return VerdictRetry
	}

	return classify(resp.Status, log, resp.Body)
}

func classify(status int, log zerolog.Logger, body []byte) Verdict {
	switch {
	case status == http.StatusAccepted:
		log.Info().Msg("event successfully delivered")
		return VerdictSuccess
	case status == http.StatusNotFound:
		log.Warn().Msg("event post failed with bad URL, potentially due to bad api key")
		return VerdictDrop
	case status == http.StatusTooManyRequests:
		log.Warn().Msg("event post failed: too many requests")
		return VerdictRetry
	case status >= 500 && status <= 599:
		log.Warn().Msg("event post failed: server side exception")
		return VerdictRetry
	case status == 0:
		log.Warn().Msg("event post failed: no response")
		return VerdictRetry
	default:
		log.Warn().Int("status", status).Bytes("body", body).Msg("event post failed: rejected")
		return VerdictDrop
	}
}
