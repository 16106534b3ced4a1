// Package otel exports authcore counters as OpenTelemetry instruments.
//
// [NewExporter] registers an Int64ObservableCounter per authcore metric
// plus one for dropped audit events; a single callback reads
// [authcore.Engine.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider — callers supply the Meter.
//   - Mutate engine state.
package otel
