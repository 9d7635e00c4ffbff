// Package server exposes one exporter over HTTP.
//
// New(collector, metrics) returns an http.Handler that serves:
//
//	GET /metrics           the exposition block, rendered fresh per request
//	GET /health            "OK"
//	GET /exporter/metrics  the process's own telemetry
//
// Any other path is 404 and any other method on a known path is 405.
// /metrics is written as text/plain; version=0.0.4 unless the client
// negotiates the delimited protobuf format.
package server
