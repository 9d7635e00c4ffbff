package server_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/common/expfmt"
	dto "github.com/prometheus/client_model/go"

	"github.com/alleycatassetacquisitions/pdn/internal/exposition"
	"github.com/alleycatassetacquisitions/pdn/internal/server"
	"github.com/alleycatassetacquisitions/pdn/internal/telemetry"
)

// --- test helpers -----------------------------------------------------------

type stubCollector struct {
	up    bool
	calls atomic.Int32
}

func (s *stubCollector) Name() string { return "stub" }

func (s *stubCollector) Collect(context.Context) exposition.Scrape {
	s.calls.Add(1)
	doc := exposition.Liveness("stub_up", "Stub exporter is running", s.up)
	if s.up {
		doc.Add(exposition.NewGauge("stub_items", "Items by kind").
			Add(3, exposition.L("kind", "a")).
			Add(4, exposition.L("kind", `b"c`)))
	}
	return exposition.Scrape{Document: doc, Up: s.up}
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

// --- /metrics ---------------------------------------------------------------

func TestMetrics_Text(t *testing.T) {
	h := server.New(&stubCollector{up: true}, telemetry.New())
	rr := do(t, h, http.MethodGet, "/metrics")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != server.TextContentType {
		t.Errorf("content-type: got %q, want %q", ct, server.TextContentType)
	}
	want := "# HELP stub_up Stub exporter is running\n" +
		"# TYPE stub_up gauge\n" +
		"stub_up 1\n" +
		"\n" +
		"# HELP stub_items Items by kind\n" +
		"# TYPE stub_items gauge\n" +
		"stub_items{kind=\"a\"} 3\n" +
		"stub_items{kind=\"b\\\"c\"} 4\n"
	if got := rr.Body.String(); got != want {
		t.Errorf("body:\ngot  %q\nwant %q", got, want)
	}
}

func TestMetrics_DownStillServes200(t *testing.T) {
	h := server.New(&stubCollector{up: false}, nil)
	rr := do(t, h, http.MethodGet, "/metrics")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if !strings.HasSuffix(rr.Body.String(), "stub_up 0\n") {
		t.Errorf("body: got %q", rr.Body.String())
	}
}

func TestMetrics_FreshPerRequest(t *testing.T) {
	c := &stubCollector{up: true}
	h := server.New(c, nil)
	do(t, h, http.MethodGet, "/metrics")
	do(t, h, http.MethodGet, "/metrics")

	if got := c.calls.Load(); got != 2 {
		t.Errorf("collect calls: got %d, want 2", got)
	}
}

func TestMetrics_Protobuf(t *testing.T) {
	h := server.New(&stubCollector{up: true}, nil)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept", "application/vnd.google.protobuf;proto=io.prometheus.client.MetricFamily;encoding=delimited")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	format := expfmt.ResponseFormat(rr.Header())
	if format.FormatType() != expfmt.TypeProtoDelim {
		t.Fatalf("format: got %q, want delimited protobuf", format)
	}

	dec := expfmt.NewDecoder(rr.Body, format)
	var names []string
	for {
		var mf dto.MetricFamily
		if err := dec.Decode(&mf); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			t.Fatalf("decode: %v", err)
		}
		names = append(names, mf.GetName())
	}
	if strings.Join(names, ",") != "stub_up,stub_items" {
		t.Errorf("families: got %v", names)
	}
}

func TestMetrics_RecordsTelemetry(t *testing.T) {
	m := telemetry.New()
	h := server.New(&stubCollector{up: false}, m)
	do(t, h, http.MethodGet, "/metrics")

	rr := do(t, h, http.MethodGet, "/exporter/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `pdn_exporter_scrapes_total{exporter="stub",up="false"} 1`) {
		t.Errorf("telemetry body missing scrape counter:\n%s", rr.Body.String())
	}
}

// --- /health and routing ----------------------------------------------------

func TestHealth(t *testing.T) {
	h := server.New(&stubCollector{}, nil)
	rr := do(t, h, http.MethodGet, "/health")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if rr.Body.String() != "OK" {
		t.Errorf("body: got %q, want OK", rr.Body.String())
	}
}

func TestUnknownPath_404(t *testing.T) {
	h := server.New(&stubCollector{}, nil)
	for _, path := range []string{"/", "/unknown", "/metrics/extra"} {
		if rr := do(t, h, http.MethodGet, path); rr.Code != http.StatusNotFound {
			t.Errorf("%s: got %d, want 404", path, rr.Code)
		}
	}
}

func TestExporterMetrics_NilTelemetry404(t *testing.T) {
	h := server.New(&stubCollector{}, nil)
	if rr := do(t, h, http.MethodGet, "/exporter/metrics"); rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rr.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := server.New(&stubCollector{}, nil)
	for _, path := range []string{"/metrics", "/health"} {
		if rr := do(t, h, http.MethodPost, path); rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST %s: got %d, want 405", path, rr.Code)
		}
	}
}

// --- ListenAndServe ---------------------------------------------------------

func TestListenAndServe_Shutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.ListenAndServe(ctx, "127.0.0.1:0", server.New(&stubCollector{}, nil))
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ListenAndServe: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("ListenAndServe did not return after cancel")
	}
}

func TestListenAndServe_BadAddress(t *testing.T) {
	err := server.ListenAndServe(context.Background(), "not-an-address", http.NotFoundHandler())
	if err == nil {
		t.Fatal("expected listen error")
	}
}
