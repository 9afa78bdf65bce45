package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ilert/ilagent/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendEventUsesDefaultPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := New(srv.URL)
	resp, err := c.SendEvent(context.Background(), model.EventJSON{APIKey: "k", EventType: "ALERT", Summary: "s"}, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.Status)
	assert.Equal(t, "/events", gotPath)
}

func TestSendEventHonorsEventAPIPathOverride(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.SendEvent(context.Background(), model.EventJSON{APIKey: "k", EventType: "ALERT", Summary: "s"}, "/custom/path")
	require.NoError(t, err)
	assert.Equal(t, "/custom/path", gotPath)
}

func TestPingHeartbeatEscapesKey(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := New(srv.URL)
	resp, err := c.PingHeartbeat(context.Background(), "my key")
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.Status)
	assert.Equal(t, "/heartbeats/my key", gotPath)
}

func TestListAlertsDecodesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PENDING", r.URL.Query()["states"][0])
		assert.Equal(t, "ACCEPTED", r.URL.Query()["states"][1])
		w.Write([]byte(`[{"id":1},{"id":2}]`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	alerts, resp, err := c.ListAlerts(context.Background(), 0, 12)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	require.Len(t, alerts, 2)
	assert.Equal(t, int64(1), alerts[0].ID)
}

func TestResolveAlertIssuesPUT(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL)
	resp, err := c.ResolveAlert(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, http.MethodPut, gotMethod)
}
