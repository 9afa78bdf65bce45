// Package metrics exposes the agent's Prometheus instrumentation: counts of
// ingested and dispatched events by source/result, and the current queue
// depth. It is wired into the HTTP ingress's /metrics endpoint (see
// pkg/ingress/httpapi) and incremented from the consumers and dispatcher.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EventsIngestedTotal counts events accepted by each ingress, labeled
	// by source (http, mqtt, kafka).
	EventsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ilagent_events_ingested_total",
			Help: "Total number of events accepted by an ingress, by source",
		},
		[]string{"source"},
	)

	// EventsDispatchedTotal counts dispatcher verdicts, labeled by result
	// (success, retry, drop).
	EventsDispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ilagent_events_dispatched_total",
			Help: "Total number of upstream delivery attempts, by verdict",
		},
		[]string{"result"},
	)

	// QueueDepth reports the number of rows in event_items as of the last
	// dispatcher tick.
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ilagent_queue_depth",
			Help: "Number of events currently queued for delivery",
		},
	)

	// HeartbeatsSentTotal counts successful heartbeat pings sent upstream.
	HeartbeatsSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ilagent_heartbeats_sent_total",
			Help: "Total number of heartbeat pings successfully sent upstream",
		},
	)
)

func init() {
	prometheus.MustRegister(EventsIngestedTotal)
	prometheus.MustRegister(EventsDispatchedTotal)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(HeartbeatsSentTotal)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
