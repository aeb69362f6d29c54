// Package health tracks per-engine health state and runs the periodic
// probe loop.
//
// The Tracker owns the record table and is the single serialization point
// for mutations: probe results from the Monitor and generation-attempt
// outcomes from the manager both funnel through Tracker.ApplyOutcome, while
// selection strategies and diagnostics only ever see read-only snapshots.
// Updates for different engines proceed fully in parallel; updates for the
// same engine are serialized by a per-entry lock.
//
// Each engine moves through a four-state machine (unknown, healthy,
// degraded, unhealthy) with single-step transitions driven by
// consecutive-outcome thresholds. Timeouts contribute a configurable
// fractional failure credit, so a slow engine demotes more gently than one
// returning hard errors.
package health
