// Package daemon runs the long-lived ilagent process: it wires the
// store, upstream client, and every enabled subtask (HTTP, MQTT, Kafka,
// dispatcher, heartbeat) together under one context, then waits for a
// shutdown signal or a subtask failure.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ilert/ilagent/pkg/cleanup"
	"github.com/ilert/ilagent/pkg/config"
	"github.com/ilert/ilagent/pkg/dispatch"
	"github.com/ilert/ilagent/pkg/heartbeat"
	"github.com/ilert/ilagent/pkg/ingress/httpapi"
	"github.com/ilert/ilagent/pkg/ingress/kafkaconsumer"
	"github.com/ilert/ilagent/pkg/ingress/mqttconsumer"
	"github.com/ilert/ilagent/pkg/store"
	"github.com/ilert/ilagent/pkg/upstream"
	"github.com/rs/zerolog"
)

// task is one supervised subtask: a named goroutine body that runs until
// ctx is cancelled or it fails on its own.
type task struct {
	name string
	run  func(context.Context) error
}

// Run builds every enabled subtask from cfg and blocks until a SIGINT,
// SIGTERM, or subtask failure triggers shutdown of the rest.
func Run(ctx context.Context, cfg *config.Config, baseURL string, log zerolog.Logger) error {
	s, err := store.Open(cfg.DBFile, log)
	if err != nil {
		return fmt.Errorf("daemon: open store: %w", err)
	}
	defer s.Close()

	upstreamClient := upstream.New(baseURL)
	dispatcher := dispatch.New(s, upstreamClient, log)

	var tasks []task
	if cfg.StartHTTP || cfg.MQTTEnabled() {
		tasks = append(tasks, task{"dispatch", dispatcher.Run})
	}

	if cfg.StartHTTP {
		srv := httpapi.New(cfg, s, upstreamClient, log)
		tasks = append(tasks, task{"httpapi", srv.Run})
	}
	if cfg.MQTTEnabled() {
		c := mqttconsumer.New(cfg, s, upstreamClient, log)
		tasks = append(tasks, task{"mqtt", c.Run})
	}
	if cfg.KafkaEnabled() {
		c := kafkaconsumer.New(cfg, dispatcher, upstreamClient, log)
		tasks = append(tasks, task{"kafka", c.Run})
	}
	if cfg.HeartbeatEnabled() {
		t := heartbeat.New(cfg.HeartbeatKey, upstreamClient, log)
		tasks = append(tasks, task{"heartbeat", t.Run})
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(tasks))
	var wg sync.WaitGroup
	for _, t := range tasks {
		wg.Add(1)
		go Supervise(runCtx, t.name, log, func(ctx context.Context) {
			defer wg.Done()
			if err := t.run(ctx); err != nil {
				errCh <- fmt.Errorf("%s: %w", t.name, err)
			}
		})
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case <-sigCh:
		log.Info().Msg("shutting down")
	case runErr = <-errCh:
		log.Error().Err(runErr).Msg("subtask failed, shutting down")
	case <-ctx.Done():
	}

	cancel()
	wg.Wait()
	log.Info().Msg("shutdown complete")
	return runErr
}

// Supervise runs fn, recovering any panic into a fatal log line and
// process exit, matching how the Kafka consumer's "crash to retry" design
// expects the whole process to die rather than just the goroutine.
func Supervise(ctx context.Context, name string, log zerolog.Logger, fn func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			log.Fatal().Str("task", name).Interface("panic", r).Msg("subtask panicked, exiting process")
		}
	}()
	fn(ctx)
}

// RunCleanup runs the one-shot cleanup command against baseURL.
func RunCleanup(ctx context.Context, baseURL string, log zerolog.Logger) error {
	u := upstream.New(baseURL)
	return cleanup.Run(ctx, u, log)
}
