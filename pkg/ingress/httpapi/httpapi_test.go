package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ilert/ilagent/pkg/config"
	"github.com/ilert/ilagent/pkg/store"
	"github.com/ilert/ilagent/pkg/upstream"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := store.Open(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cfg := config.New()
	u := upstream.New("http://upstream.invalid")
	return New(cfg, s, u, zerolog.Nop())
}

func TestHandleEventAcceptsValidEvent(t *testing.T) {
	srv := newTestServer(t)

	body := `{"apiKey":"k","eventType":"ALERT","summary":"disk full"}`
	req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(body))
	rec := httptest.NewRecorder()

	srv.handleEvent(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	depth, err := srv.store.Depth()
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func TestHandleEventRejectsMalformedJSON(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader("not json"))
	rec := httptest.NewRecorder()

	srv.handleEvent(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleEventRejectsUnknownEventType(t *testing.T) {
	srv := newTestServer(t)

	body := `{"apiKey":"k","eventType":"BOGUS","summary":"s"}`
	req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(body))
	rec := httptest.NewRecorder()

	srv.handleEvent(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleEventRejectsOversizedBody(t *testing.T) {
	srv := newTestServer(t)

	oversized := strings.Repeat("a", maxEventBodyBytes+1)
	body := `{"apiKey":"k","eventType":"ALERT","summary":"` + oversized + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(body))
	rec := httptest.NewRecorder()

	srv.handleEvent(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleEventRejectsWrongMethod(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	rec := httptest.NewRecorder()

	srv.handleEvent(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleHeartbeatRejectsMissingKey(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/heartbeats/", nil)
	rec := httptest.NewRecorder()

	srv.handleHeartbeat(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRootReportsVersion(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	srv.handleRoot(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ilagent/"+Version, rec.Body.String())
}

func TestHandleHeartbeatReturns202OnUpstreamAccepted(t *testing.T) {
	upstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer upstreamSrv.Close()

	s, err := store.Open(":memory:", zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	srv := New(config.New(), s, upstream.New(upstreamSrv.URL), zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/heartbeats/my-key", nil)
	rec := httptest.NewRecorder()

	srv.handleHeartbeat(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestHandleHealthReportsHealthy(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	srv.handleHealth(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
