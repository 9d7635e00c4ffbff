// Package contract checks a Grafana dashboard and a Prometheus scrape config
// against what the exporters actually emit.
//
// Check reports panels that query metrics or labels the exporters do not
// produce, legend placeholders naming absent labels, exporter metrics no panel
// uses, panels without queries, datasources referenced by name instead of uid,
// value mappings that miss emitted values, and exporters that are not scraped
// (or scraped too rarely).
//
// Expressions are scanned, not parsed: any identifier carrying an exporter's
// metric prefix counts as a reference, and its {...} matchers are checked.
package contract
