// Package prometheus exposes authgate engine metrics to Prometheus.
//
// [NewCollector] wraps an [authgate.Engine] in a prometheus.Collector that
// reads a snapshot on each scrape. Counter names are authgate_*_total; the
// single histogram is authgate_auth_latency_seconds.
//
// Callers register the collector themselves or mount [Handler], which uses a
// private registry. This package never mutates engine state.
package prometheus
