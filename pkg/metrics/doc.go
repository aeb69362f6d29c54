// Package metrics exposes Prometheus metrics for the rendering engines.
//
// Metrics are optional: when disabled, constructors return nil and every
// recording method on the nil receiver is a safe no-op, so the manager and
// health monitor record unconditionally.
package metrics
