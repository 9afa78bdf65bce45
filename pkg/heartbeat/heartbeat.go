// Package heartbeat runs the standalone heartbeat ticker: it pings the
// configured heartbeat key immediately on start, then every 30 seconds,
// checked at a 300ms granularity so shutdown stays responsive.
package heartbeat

import (
	"context"
	"net/http"
	"time"

	"github.com/ilert/ilagent/pkg/metrics"
	"github.com/ilert/ilagent/pkg/upstream"
	"github.com/rs/zerolog"
)

const (
	period       = 30 * time.Second
	sleepGranule = 300 * time.Millisecond
)

// Ticker pings a single heartbeat key on a fixed schedule.
type Ticker struct {
	apiKey   string
	upstream *upstream.Client
	log      zerolog.Logger
}

// New returns a Ticker for apiKey.
func New(apiKey string, u *upstream.Client, log zerolog.Logger) *Ticker {
	return &Ticker{apiKey: apiKey, upstream: u, log: log.With().Str("component", "heartbeat").Logger()}
}

// Run blocks until ctx is cancelled, pinging immediately and then every
// period.
func (t *Ticker) Run(ctx context.Context) error {
	t.ping(ctx)
	lastRun := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(sleepGranule):
		}

		if time.Since(lastRun) < period {
			continue
		}
		lastRun = time.Now()
		t.ping(ctx)
	}
}

func (t *Ticker) ping(ctx context.Context) bool {
	resp, err := t.upstream.PingHeartbeat(ctx, t.apiKey)
	if err != nil {
		t.log.Error().Err(err).Msg("heartbeat http request failed")
		return false
	}
	if resp.Status != http.StatusAccepted {
		t.log.Error().Int("status", resp.Status).Msg("bad heartbeat http response")
		return false
	}
	metrics.HeartbeatsSentTotal.Inc()
	return true
}
