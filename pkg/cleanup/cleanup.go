// Package cleanup implements the one-shot "resolve all open alerts" command:
// it pages through PENDING/ACCEPTED alerts and resolves each one, pacing
// its calls to stay under upstream API rate limits.
package cleanup

import (
	"context"
	"net/http"
	"time"

	"github.com/ilert/ilagent/pkg/upstream"
	"github.com/rs/zerolog"
)

const (
	pageSize = 12
	pacing   = time.Second
)

// Run resolves every PENDING/ACCEPTED alert returned by the upstream alert
// listing, one page at a time, until a page comes back empty or a fetch
// fails. The listing and resolve requests carry no API key or other
// credentials.
func Run(ctx context.Context, u *upstream.Client, log zerolog.Logger) error {
	log.Info().Msg("resolving alerts...")

	skip := 0
	resolved := 0

	for {
		alerts, resp, err := u.ListAlerts(ctx, skip, pageSize)
		if err != nil {
			return err
		}
		if resp.Status != http.StatusOK {
			log.Error().Int("status", resp.Status).Msg("failed to fetch alerts")
			break
		}
		if len(alerts) == 0 {
			break
		}

		time.Sleep(pacing)
		for _, alert := range alerts {
			resolveResp, err := u.ResolveAlert(ctx, alert.ID)
			if err != nil {
				log.Error().Err(err).Int64("alert_id", alert.ID).Msg("failed to resolve alert")
			} else if resolveResp.Status != http.StatusOK {
				log.Error().Int("status", resolveResp.Status).Int64("alert_id", alert.ID).Msg("failed to resolve alert")
			} else {
				resolved++
				log.Debug().Int64("alert_id", alert.ID).Msg("resolved alert")
			}

			time.Sleep(pacing)
		}

		skip += pageSize
		log.Info().Int("resolved", resolved).Msg("resolved alerts...")
	}

	log.Info().Int("resolved", resolved).Msg("resolved a total of alerts")
	return nil
}
