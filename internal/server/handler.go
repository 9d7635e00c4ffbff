package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/common/expfmt"

	"github.com/alleycatassetacquisitions/pdn/internal/exposition"
	"github.com/alleycatassetacquisitions/pdn/internal/telemetry"
)

// TextContentType is the Content-Type of the text exposition format.
const TextContentType = "text/plain; version=0.0.4; charset=utf-8"

// Collector renders one exposition block per call. Implementations must be
// safe for concurrent use.
type Collector interface {
	Name() string
	Collect(ctx context.Context) exposition.Scrape
}

// Handler routes exporter requests.
type Handler struct {
	collector Collector
	metrics   *telemetry.Metrics
	router    chi.Router
}

// New creates a Handler for c. metrics may be nil, in which case
// /exporter/metrics answers 404.
func New(c Collector, metrics *telemetry.Metrics) http.Handler {
	h := &Handler{collector: c, metrics: metrics, router: chi.NewRouter()}

	h.router.Use(middleware.Recoverer, requestLog(c.Name()))
	h.router.Get("/metrics", h.serveMetrics)
	h.router.Get("/health", h.health)
	h.router.Get("/exporter/metrics", metrics.Handler().ServeHTTP)
	h.router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		textResp(w, http.StatusNotFound, "Not Found\n")
	})
	h.router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		textResp(w, http.StatusMethodNotAllowed, "Method Not Allowed\n")
	})

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// serveMetrics returns GET /metrics.
func (h *Handler) serveMetrics(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	scrape := h.collector.Collect(r.Context())

	format := expfmt.Negotiate(r.Header)
	if format.FormatType() == expfmt.TypeProtoDelim {
		w.Header().Set("Content-Type", string(format))
		w.WriteHeader(http.StatusOK)
		if err := scrape.Document.Encode(w, format); err != nil {
			slog.Error("server: encode protobuf", "exporter", h.collector.Name(), "err", err)
		}
	} else {
		w.Header().Set("Content-Type", TextContentType)
		w.WriteHeader(http.StatusOK)
		scrape.Document.WriteTo(w) //nolint:errcheck
	}

	h.metrics.ObserveScrape(h.collector.Name(), scrape.Up, time.Since(start))
}

// health returns GET /health.
func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	textResp(w, http.StatusOK, "OK")
}

func textResp(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	w.Write([]byte(body)) //nolint:errcheck
}

func requestLog(exporter string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			slog.Debug("server: request",
				"exporter", exporter,
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}
