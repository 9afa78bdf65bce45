package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ilert/ilagent/pkg/model"
	"github.com/ilert/ilagent/pkg/store"
	"github.com/ilert/ilagent/pkg/upstream"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T, handler http.HandlerFunc) (*Dispatcher, *store.Store) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s, err := store.Open(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return New(s, upstream.New(srv.URL), zerolog.Nop()), s
}

func insertItem(t *testing.T, s *store.Store) model.QueueItem {
	t.Helper()
	item := model.NewQueueItem()
	item.APIKey = "k"
	item.Summary = "s"
	stored, err := s.Insert(item)
	require.NoError(t, err)
	return stored
}

func TestDeliverOneSuccessOn202(t *testing.T) {
	d, s := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	item := insertItem(t, s)
	assert.Equal(t, VerdictSuccess, d.DeliverOne(context.Background(), item))
}

func TestDeliverOneDropOn404(t *testing.T) {
	d, s := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	item := insertItem(t, s)
	assert.Equal(t, VerdictDrop, d.DeliverOne(context.Background(), item))
}

func TestDeliverOneRetryOn429(t *testing.T) {
	d, s := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	item := insertItem(t, s)
	assert.Equal(t, VerdictRetry, d.DeliverOne(context.Background(), item))
}

func TestDeliverOneRetryOn5xx(t *testing.T) {
	d, s := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	item := insertItem(t, s)
	assert.Equal(t, VerdictRetry, d.DeliverOne(context.Background(), item))
}

func TestDeliverOneDropOnOther4xx(t *testing.T) {
	d, s := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	item := insertItem(t, s)
	assert.Equal(t, VerdictDrop, d.DeliverOne(context.Background(), item))
}

func TestDeliverOneDropsOnUnparseableEventType(t *testing.T) {
	d, s := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	item := insertItem(t, s)
	item.EventType = "BOGUS"
	assert.Equal(t, VerdictDrop, d.DeliverOne(context.Background(), item))
}

func TestDeliverOneDropsOnUnparseablePriority(t *testing.T) {
	d, s := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	item := insertItem(t, s)
	bogus := "URGENT"
	item.Priority = &bogus
	assert.Equal(t, VerdictDrop, d.DeliverOne(context.Background(), item))
}

func TestDeliverOneRetryOnNetworkFailure(t *testing.T) {
	s, err := store.Open(":memory:", zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	d := New(s, upstream.New("http://127.0.0.1:0"), zerolog.Nop())
	item := insertItem(t, s)
	assert.Equal(t, VerdictRetry, d.DeliverOne(context.Background(), item))
}
