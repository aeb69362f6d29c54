// Package manager orchestrates PDF rendering engines. It owns engine
// registration and lifecycle, runs the health monitor, orders candidates
// with a selection strategy, and drives the attempt/retry/failover loop
// under the resource gate.
//
// The central entry point is Manager.Generate, which never returns a Go
// error: every failure mode, including exhausting all candidates, resolves
// to a failure result so callers have a single code path to inspect.
package manager
