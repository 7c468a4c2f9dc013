// Package metric collects Prometheus metrics for one CLI invocation.
//
//   - prometheus.go: command counters and latency histograms, textfile dump
//   - collector.go: State Store size collector
//
// The CLI has no long-running process to scrape, so metrics are written to
// a node_exporter textfile after each command.
package metric
