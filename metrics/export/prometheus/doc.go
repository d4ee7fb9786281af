// Package prometheus renders goIdentity Manager metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] wraps a [goIdentity.Manager] and exposes an
// [http.Handler]. Each credential area is one counter family,
// goidentity_<area>_events_total, labelled by event; the single histogram is
// goidentity_password_hash_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry; callers mount the Handler.
//   - Mutate Manager state.
package prometheus
