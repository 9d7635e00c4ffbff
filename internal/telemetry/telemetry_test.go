package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alleycatassetacquisitions/pdn/internal/source"
)

func find(t *testing.T, g prometheus.Gatherer, name string) *dto.MetricFamily {
	t.Helper()
	mfs, err := g.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestMetrics_ObserveScrape(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNewMetrics(reg)

	m.ObserveScrape("fleet", true, 15*time.Millisecond)
	m.ObserveScrape("fleet", true, 5*time.Millisecond)
	m.ObserveScrape("fleet", false, time.Millisecond)

	scrapes := find(t, reg, "pdn_exporter_scrapes_total")
	require.NotNil(t, scrapes)
	got := map[string]float64{}
	for _, metric := range scrapes.GetMetric() {
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == "up" {
				got[lp.GetValue()] = metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, map[string]float64{"true": 2, "false": 1}, got)

	hist := find(t, reg, "pdn_exporter_scrape_duration_seconds")
	require.NotNil(t, hist)
	require.Len(t, hist.GetMetric(), 1)
	assert.Equal(t, uint64(3), hist.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestMetrics_ObserveFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNewMetrics(reg)

	m.ObserveFailure("gh_pulls", &source.Failure{Kind: source.KindEmptyOutput})
	m.ObserveFailure("gh_pulls", &source.Failure{Kind: source.KindEmptyOutput})
	m.ObserveFailure("fleet_state", nil)

	mf := find(t, reg, "pdn_exporter_source_failures_total")
	require.NotNil(t, mf)
	require.Len(t, mf.GetMetric(), 1)
	assert.Equal(t, 2.0, mf.GetMetric()[0].GetCounter().GetValue())
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveScrape("fleet", true, time.Second)
	m.ObserveFailure("x", &source.Failure{})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveScrape("github", false, time.Second)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `pdn_exporter_scrapes_total{exporter="github",up="false"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
