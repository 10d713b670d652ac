package monitoring

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.RecordProcessed()
	m.RecordProcessed()
	m.Search("ok")
	m.Throttled()
	m.Fetch("timeout")
	m.LLMCall("ok")
	m.CacheLookup("hit")
	m.Outcome("valid")
	m.Checkpoint("save")
	m.Error("search")

	assert.InDelta(t, 2, testutil.ToFloat64(m.RecordsProcessed), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.SearchRequests.WithLabelValues("ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.SearchThrottles), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.FetchResults.WithLabelValues("timeout")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.HitOutcomes.WithLabelValues("valid")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Checkpoints.WithLabelValues("save")), 0)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordProcessed()
		m.RecordFailed()
		m.Search("error")
		m.Throttled()
		m.Fetch("empty")
		m.LLMCall("error")
		m.CacheLookup("miss")
		m.Outcome("invalid")
		m.Checkpoint("delete")
		m.Error("fetch")
	})
	assert.Nil(t, m.Registry())
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.Outcome("manual_review")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `arrest_news_hit_outcomes_total{outcome="manual_review"} 1`)
}
