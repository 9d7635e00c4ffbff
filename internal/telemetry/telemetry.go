// Package telemetry holds the exporter's own Prometheus metrics, served
// separately from the exposition blocks it renders.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alleycatassetacquisitions/pdn/internal/source"
)

const namespace = "pdn_exporter"

// Metrics records scrape and source activity.
type Metrics struct {
	scrapeDuration *prometheus.HistogramVec
	scrapes        *prometheus.CounterVec
	sourceFailures *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New builds Metrics on a private registry that also carries the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return MustNewMetrics(reg)
}

// MustNewMetrics registers the collectors with reg and panics on a
// registration error.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		scrapeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scrape_duration_seconds",
				Help:      "Time spent reading sources and rendering one exposition block.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"exporter"},
		),
		scrapes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scrapes_total",
				Help:      "Exposition blocks served, by whether the source could be read.",
			},
			[]string{"exporter", "up"},
		),
		sourceFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "source_failures_total",
				Help:      "Source reads that produced no value, by failure kind.",
			},
			[]string{"source", "kind"},
		),
	}
	reg.MustRegister(m.scrapeDuration, m.scrapes, m.sourceFailures)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// ObserveScrape records one served block.
func (m *Metrics) ObserveScrape(exporter string, up bool, d time.Duration) {
	if m == nil {
		return
	}
	m.scrapeDuration.WithLabelValues(exporter).Observe(d.Seconds())
	m.scrapes.WithLabelValues(exporter, strconv.FormatBool(up)).Inc()
}

// ObserveFailure implements source.Observer.
func (m *Metrics) ObserveFailure(name string, f *source.Failure) {
	if m == nil || f == nil {
		return
	}
	m.sourceFailures.WithLabelValues(name, f.Kind.String()).Inc()
}

// Handler serves the registry in any format promhttp negotiates.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

var _ source.Observer = (*Metrics)(nil)
