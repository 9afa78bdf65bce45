// Package httpapi is the HTTP ingress: it exposes the event/heartbeat
// submission endpoints used by clients that push directly over HTTP
// instead of through MQTT or Kafka, plus health/readiness/metrics
// endpoints for operating the daemon.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ilert/ilagent/pkg/config"
	"github.com/ilert/ilagent/pkg/metrics"
	"github.com/ilert/ilagent/pkg/model"
	"github.com/ilert/ilagent/pkg/store"
	"github.com/ilert/ilagent/pkg/upstream"
	"github.com/rs/zerolog"
)

const maxEventBodyBytes = 16000

// Version is reported by GET / as "ilagent/<version>"; set from the CLI's
// build metadata.
var Version = "dev"

// Server is the HTTP ingress.
type Server struct {
	cfg      *config.Config
	store    *store.Store
	upstream *upstream.Client
	log      zerolog.Logger
	srv      *http.Server
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg})
}

// New builds a Server bound to cfg.HTTPBindAddr(). Call Run to start serving.
func New(cfg *config.Config, s *store.Store, u *upstream.Client, log zerolog.Logger) *Server {
	log = log.With().Str("component", "httpapi").Logger()
	hs := &Server{cfg: cfg, store: s, upstream: u, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/", hs.handleRoot)
	mux.HandleFunc("/ready", hs.handleReady)
	mux.HandleFunc("/health", hs.handleHealth)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/api/events", hs.handleEvent)
	mux.HandleFunc("/api/heartbeats/", hs.handleHeartbeat)

	hs.srv = &http.Server{
		Addr:              cfg.HTTPBindAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return hs
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.srv.Addr).Msg("http ingress listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("httpapi: shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "ilagent/%s", Version)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// handleEvent accepts a canonical (strict) event body and enqueues it for
// the dispatcher; it never calls upstream itself.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBodyBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) > maxEventBodyBytes {
		writeError(w, http.StatusBadRequest, "request body too large")
		return
	}

	var event model.EventJSON
	if err := json.Unmarshal(body, &event); err != nil {
		s.log.Warn().Err(err).Msg("rejecting malformed event body")
		writeError(w, http.StatusBadRequest, "malformed event body")
		return
	}
	if _, ok := model.ParseEventType(event.EventType); !ok {
		writeError(w, http.StatusBadRequest, "Unsupported value for field 'eventType'.")
		return
	}
	if event.Priority != nil {
		if _, ok := model.ParsePriority(*event.Priority); !ok {
			writeError(w, http.StatusBadRequest, "Unsupported value for field 'priority'.")
			return
		}
	}

	item := model.ToStore(event, "")
	stored, err := s.store.Insert(item)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to enqueue event")
		writeError(w, http.StatusInternalServerError, "failed to store event")
		return
	}

	metrics.EventsIngestedTotal.WithLabelValues("http").Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(model.FromStore(stored))
}

// handleHeartbeat synchronously pings the upstream heartbeat endpoint with
// the path parameter; heartbeats are never queued locally.
func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	key := r.URL.Path[len("/api/heartbeats/"):]
	if key == "" {
		writeError(w, http.StatusBadRequest, "missing heartbeat key")
		return
	}

	resp, err := s.upstream.PingHeartbeat(r.Context(), key)
	if err != nil || resp.Status != http.StatusAccepted {
		if err != nil {
			s.log.Error().Err(err).Str("key", key).Msg("heartbeat ping failed")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("{}"))
		return
	}

	metrics.HeartbeatsSentTotal.Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte("{}"))
}
