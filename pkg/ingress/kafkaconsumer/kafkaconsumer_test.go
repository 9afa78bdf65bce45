package kafkaconsumer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ilert/ilagent/pkg/config"
	"github.com/ilert/ilagent/pkg/dispatch"
	"github.com/ilert/ilagent/pkg/model"
	"github.com/ilert/ilagent/pkg/store"
	"github.com/ilert/ilagent/pkg/upstream"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

func newTestConsumer(t *testing.T, handler http.HandlerFunc) *Consumer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s, err := store.Open(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cfg := config.New()
	u := upstream.New(srv.URL)
	d := dispatch.New(s, u, zerolog.Nop())
	return New(cfg, d, u, zerolog.Nop())
}

func TestHandleEventStampsKafkaCustomDetailsAndDelivers(t *testing.T) {
	var delivered model.EventJSON
	c := newTestConsumer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&delivered)
		w.WriteHeader(http.StatusAccepted)
	})

	rec := &kgo.Record{
		Topic: c.cfg.EventTopic,
		Key:   []byte("part-key"),
		Value: []byte(`{"apiKey":"k","eventType":"ALERT","summary":"s"}`),
	}

	retry := c.handleEvent(context.Background(), rec)
	assert.False(t, retry)

	var details map[string]string
	require.NoError(t, json.Unmarshal(delivered.CustomDetails, &details))
	assert.Equal(t, "part-key", details["kafka_key"])
	assert.Equal(t, c.cfg.EventTopic, details["kafka_topic"])
}

func TestHandleEventRequestsRetryOnServerError(t *testing.T) {
	c := newTestConsumer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	rec := &kgo.Record{
		Topic: c.cfg.EventTopic,
		Value: []byte(`{"apiKey":"k","eventType":"ALERT","summary":"s"}`),
	}

	retry := c.handleEvent(context.Background(), rec)
	assert.True(t, retry)
}

func TestHandleHeartbeatNeverRetries(t *testing.T) {
	c := newTestConsumer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := &kgo.Record{Value: []byte(`{"apiKey":"k"}`)}
	retry := c.handleHeartbeat(context.Background(), rec)
	assert.False(t, retry)
}
