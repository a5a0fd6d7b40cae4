// Package otel binds authgate engine metrics to OpenTelemetry instruments.
//
// [NewExporter] registers an Int64ObservableCounter per engine counter and
// an Int64ObservableGauge per latency bucket. A single callback reads
// [authgate.Engine.MetricsSnapshot] on each collection cycle. Callers own
// the MeterProvider.
package otel
