// Package engines defines the rendering backend abstraction and the shared
// request/result data model of the generation pipeline.
//
// An Engine turns HTML content plus page options into a PDF byte stream and
// reports its own page count. The package deliberately knows nothing about
// selection, health, or failover; those live in the manager and its
// collaborators. Concrete engines are a closed set of variants constructed
// at startup from configuration:
//
//   - chromium: headless Chrome via go-rod (subpackage chromium)
//   - remote:   HTTP render service adapter (subpackage remote)
//
// New engine types are added by extending this set, not by dynamic loading.
package engines
