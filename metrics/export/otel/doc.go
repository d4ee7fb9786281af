// Package otel publishes goIdentity Manager metrics through an OpenTelemetry
// Meter.
//
// [NewOTelExporter] registers one Int64ObservableCounter per credential area
// (goidentity.<area>.events, with an "event" attribute) and a cumulative
// password hash latency gauge keyed by an "le" attribute. One callback reads
// [goIdentity.Manager.MetricsSnapshot] per collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider; callers supply the Meter.
//   - Mutate Manager state.
package otel
