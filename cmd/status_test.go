package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/arrest-news-cli/internal/batch"
	"github.com/sells-group/arrest-news-cli/internal/model"
	"github.com/sells-group/arrest-news-cli/internal/monitoring"
)

type staticProgress batch.Progress

func (s staticProgress) Progress() batch.Progress { return batch.Progress(s) }

func newTestStatusServer(t *testing.T) *httptest.Server {
	t.Helper()
	m := monitoring.NewMetrics()
	m.RecordProcessed()
	src := staticProgress{
		BatchID:   "input.csv-abc",
		RunID:     "run-1",
		State:     batch.StateRunning,
		Total:     10,
		Processed: 4,
		Results:   map[model.Outcome]int{model.OutcomeValid: 2},
		StartedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	srv := httptest.NewServer(statusRouter(src, m))
	t.Cleanup(srv.Close)
	return srv
}

func TestStatus_Healthz(t *testing.T) {
	srv := newTestStatusServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestStatus_Progress(t *testing.T) {
	srv := newTestStatusServer(t)

	resp, err := http.Get(srv.URL + "/progress")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var p batch.Progress
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	assert.Equal(t, "run-1", p.RunID)
	assert.Equal(t, batch.StateRunning, p.State)
	assert.Equal(t, 4, p.Processed)
	assert.Equal(t, 2, p.Results[model.OutcomeValid])
	assert.True(t, p.LastCheckpoint.IsZero())
}

func TestStatus_Metrics(t *testing.T) {
	srv := newTestStatusServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatus_CORSPreflight(t *testing.T) {
	srv := newTestStatusServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/progress", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://dashboard.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestStatus_UnknownRoute(t *testing.T) {
	srv := newTestStatusServer(t)

	resp, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
