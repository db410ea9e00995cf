package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yoshidak/webwatch/internal/cycle"
	"github.com/yoshidak/webwatch/internal/rowstore/memory"
	"github.com/yoshidak/webwatch/internal/watch"
)

type fakeTrigger struct {
	summary cycle.Summary
	err     error
	calls   int
}

func (t *fakeTrigger) TryRun(context.Context) (cycle.Summary, error) {
	t.calls++
	return t.summary, t.err
}

func (t *fakeTrigger) Running() bool { return false }

func newTestServer(t *testing.T, trigger CycleTrigger) (*memory.Store, *httptest.Server) {
	t.Helper()
	store := memory.New()
	srv := httptest.NewServer(NewServer(store, trigger, nil).Handler())
	t.Cleanup(srv.Close)
	return store, srv
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	_, srv := newTestServer(t, &fakeTrigger{})

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NotEmpty(t, resp.Header.Get("X-Request-ID"))
		resp.Body.Close()
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	_, srv := newTestServer(t, &fakeTrigger{})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRunCycle(t *testing.T) {
	t.Parallel()

	trigger := &fakeTrigger{summary: cycle.Summary{Total: 3, Notified: 1}}
	_, srv := newTestServer(t, trigger)

	resp, err := http.Post(srv.URL+"/v1/cycle", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, trigger.calls)

	var got cycle.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, 3, got.Total)
	require.Equal(t, 1, got.Notified)
}

func TestRunCycleConflict(t *testing.T) {
	t.Parallel()

	trigger := &fakeTrigger{err: cycle.ErrCycleRunning}
	_, srv := newTestServer(t, trigger)

	resp, err := http.Post(srv.URL+"/v1/cycle", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestListTargets(t *testing.T) {
	t.Parallel()

	store, srv := newTestServer(t, &fakeTrigger{})
	_, err := store.Seed(watch.MonitorTarget{Word: "ラーメン", Source: "tabelog", Frequency: 4})
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/v1/targets/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Targets []watch.MonitorTarget `json:"targets"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Targets, 1)
	require.Equal(t, "ラーメン", body.Targets[0].Word)
}

func TestDeleteTarget(t *testing.T) {
	t.Parallel()

	store, srv := newTestServer(t, &fakeTrigger{})
	refs, err := store.Seed(watch.MonitorTarget{Word: "w", Source: watch.PageWatchSource, URL: "https://x.example"})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/v1/targets/"+string(refs[0]), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	rows, err := store.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, rows)

	// Deleting again is a 404.
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
